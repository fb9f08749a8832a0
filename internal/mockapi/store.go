package mockapi

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Directory is the in-memory backing store of the mock backend.
type Directory struct {
	mu          sync.RWMutex
	cost        int
	users       map[int64]*User
	companies   map[int64]*Company
	permissions []Permission
	nextUserID  int64
}

// NewDirectory seeds a directory from cfg. Seed passwords are hashed here.
func NewDirectory(cfg *ConfigParam) (*Directory, error) {
	d := &Directory{
		cost:      cfg.Auth.BcryptCost,
		users:     make(map[int64]*User),
		companies: make(map[int64]*Company),
	}
	if d.cost == 0 {
		d.cost = bcrypt.DefaultCost
	}
	for i, key := range cfg.Permissions {
		resource, action, _ := strings.Cut(key, ":")
		d.permissions = append(d.permissions, Permission{
			ID:       int64(i + 1),
			Key:      key,
			Resource: resource,
			Action:   action,
		})
	}
	now := time.Now().UTC()
	for _, seed := range cfg.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), d.cost)
		if err != nil {
			return nil, ErrMockAPI.MsgErr("unable to hash seed password", err)
		}
		status := seed.Status
		if status == "" {
			status = StatusActive
		}
		for _, p := range seed.Permissions {
			if _, ok := d.permissionByKey(p); !ok {
				return nil, ErrUnknownPermission.New("unknown permission " + p + " for " + seed.Email)
			}
		}
		d.users[seed.ID] = &User{
			ID:           seed.ID,
			Email:        strings.ToLower(seed.Email),
			Nombre:       seed.Nombre,
			Phone:        seed.Phone,
			Role:         seed.Role,
			Status:       status,
			Permissions:  slices.Clone(seed.Permissions),
			CreatedAt:    now,
			passwordHash: hash,
		}
		d.nextUserID = max(d.nextUserID, seed.ID)
	}
	for _, seed := range cfg.Companies {
		status := seed.Status
		if status == "" {
			status = StatusActive
		}
		d.companies[seed.ID] = &Company{
			ID:          seed.ID,
			Name:        seed.Name,
			Phone:       seed.Phone,
			Status:      status,
			OwnerUserID: seed.OwnerUserID,
			members:     slices.Clone(seed.Members),
		}
	}
	return d, nil
}

func (d *Directory) permissionByKey(key string) (Permission, bool) {
	for _, p := range d.permissions {
		if p.Key == key {
			return p, true
		}
	}
	return Permission{}, false
}

func (d *Directory) permissionKeys(ids []int64) ([]string, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || int(id) > len(d.permissions) {
			return nil, ErrUnknownPermission
		}
		keys = append(keys, d.permissions[id-1].Key)
	}
	return keys, nil
}

func (d *Directory) findByEmail(email string) *User {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range d.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// Authenticate checks the credentials and returns a copy of the user.
func (d *Directory) Authenticate(email, password string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u := d.findByEmail(email)
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return nil, ErrInactiveUser
	}
	return u.clone(), nil
}

// User returns a copy of the user with the given id.
func (d *Directory) User(id int64) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.clone(), nil
}

// Users lists every user ordered by id.
func (d *Directory) Users() []*User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateUser adds a user with no permissions.
func (d *Directory) CreateUser(req *CreateUserRequest) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.cost)
	if err != nil {
		return nil, ErrMockAPI.MsgErr("unable to hash password", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findByEmail(req.Email) != nil {
		return nil, ErrUserExists
	}
	d.nextUserID++
	u := &User{
		ID:           d.nextUserID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Nombre:       req.Nombre,
		Phone:        req.Phone,
		Role:         req.BaseRole,
		Status:       StatusActive,
		Permissions:  []string{},
		CreatedAt:    time.Now().UTC(),
		passwordHash: hash,
	}
	d.users[u.ID] = u
	return u.clone(), nil
}

// UpdateUser applies the fields present in req.
func (d *Directory) UpdateUser(id int64, req *UpdateUserRequest) (*User, error) {
	var hash []byte
	if req.Password != nil {
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(*req.Password), d.cost); err != nil {
			return nil, ErrMockAPI.MsgErr("unable to hash password", err)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if req.Email != nil {
		if other := d.findByEmail(*req.Email); other != nil && other.ID != id {
			return nil, ErrUserExists
		}
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Nombre != nil {
		u.Nombre = *req.Nombre
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Status != nil {
		u.Status = *req.Status
	}
	if req.BaseRole != nil {
		u.Role = *req.BaseRole
	}
	if hash != nil {
		u.passwordHash = hash
	}
	return u.clone(), nil
}

// DeleteUser removes the user and its company memberships.
func (d *Directory) DeleteUser(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(d.users, id)
	for _, c := range d.companies {
		c.members = slices.DeleteFunc(c.members, func(m int64) bool { return m == id })
	}
	return nil
}

// Permissions returns the permission catalogue.
func (d *Directory) Permissions() []Permission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.permissions)
}

// PermissionMode selects how UpdatePermissions combines the given ids with the
// user's current grants.
type PermissionMode int

const (
	PermissionsSet PermissionMode = iota
	PermissionsAdd
	PermissionsRemove
)

// UpdatePermissions replaces, extends or reduces the user's grants and
// returns the resulting list.
func (d *Directory) UpdatePermissions(id int64, ids []int64, mode PermissionMode) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	keys, err := d.permissionKeys(ids)
	if err != nil {
		return nil, err
	}
	switch mode {
	case PermissionsSet:
		u.Permissions = keys
	case PermissionsAdd:
		for _, k := range keys {
			if !slices.Contains(u.Permissions, k) {
				u.Permissions = append(u.Permissions, k)
			}
		}
	case PermissionsRemove:
		u.Permissions = slices.DeleteFunc(u.Permissions, func(p string) bool {
			return slices.Contains(keys, p)
		})
	}
	slices.Sort(u.Permissions)
	u.Permissions = slices.Compact(u.Permissions)
	return slices.Clone(u.Permissions), nil
}

// CompaniesFor lists the companies visible to the user. SUPERADMIN sees all,
// others see those they own or belong to.
func (d *Directory) CompaniesFor(u *User) []Company {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Company{}
	for _, c := range d.companies {
		if u.Role == RoleSuperAdmin || c.OwnerUserID == u.ID || slices.Contains(c.members, u.ID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InCompany reports whether the user owns or belongs to the company.
func (d *Directory) InCompany(companyID, userID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.companies[companyID]
	if !ok {
		return false
	}
	return c.OwnerUserID == userID || slices.Contains(c.members, userID)
}
