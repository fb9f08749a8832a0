// Package companyctx remembers which company the user is working on. The
// choice scopes business requests through the x-company-id header and gates
// the company-bound screens.
package companyctx

import (
	"context"
	"fmt"
	"math"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/codigos/codigos/internal/storage"
)

// Key is the storage key holding the active company.
const Key = "activeCompany"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ActiveCompany is the company requests are scoped to.
type ActiveCompany struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store holds the active company in memory and mirrors it to a key/value
// backend. It is safe for concurrent use.
type Store struct {
	kv storage.KV

	mu     sync.RWMutex
	active *ActiveCompany
}

// Load creates a Store primed with the persisted company. A persisted value
// that is not an object with a positive integer id and a string name reads
// as no company.
func Load(ctx context.Context, kv storage.KV) (*Store, error) {
	s := &Store{kv: kv}
	raw, ok, err := kv.Get(ctx, Key)
	if err != nil {
		return nil, err
	}
	if ok {
		s.active = parse(raw)
		if s.active == nil {
			log.Ctx(ctx).Debug().Msg("ignoring invalid persisted company")
		}
	}
	return s, nil
}

func parse(raw string) *ActiveCompany {
	if !gjson.Valid(raw) {
		return nil
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil
	}
	id, name := doc.Get("id"), doc.Get("name")
	if id.Type != gjson.Number || name.Type != gjson.String {
		return nil
	}
	if id.Num <= 0 || id.Num != math.Trunc(id.Num) || id.Num > math.MaxInt64 {
		return nil
	}
	return &ActiveCompany{ID: int64(id.Num), Name: name.Str}
}

// Active returns a copy of the active company, or nil.
func (s *Store) Active() *ActiveCompany {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	c := *s.active
	return &c
}

// CompanyID returns the active company's id, or 0.
func (s *Store) CompanyID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return 0
	}
	return s.active.ID
}

// CompanyName returns the active company's name, or "".
func (s *Store) CompanyName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.Name
}

func (s *Store) HasCompany() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// SetActiveCompany replaces the active company. nil clears it.
func (s *Store) SetActiveCompany(ctx context.Context, c *ActiveCompany) error {
	if c == nil {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		return s.kv.Delete(ctx, Key)
	}

	cp := *c
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.active = &cp
	s.mu.Unlock()
	return s.kv.Set(ctx, Key, string(b))
}

// SetCompanyID selects a company by id. An id <= 0 clears the selection and
// an empty name defaults to "Company #<id>".
func (s *Store) SetCompanyID(ctx context.Context, id int64, name string) error {
	if id <= 0 {
		return s.SetActiveCompany(ctx, nil)
	}
	if name == "" {
		name = fmt.Sprintf("Company #%d", id)
	}
	return s.SetActiveCompany(ctx, &ActiveCompany{ID: id, Name: name})
}
