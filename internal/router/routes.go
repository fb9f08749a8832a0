package router

// Permissions required by the company-scoped screens.
const (
	PermCustomersRead = "CUSTOMERS:READ"
	PermSuppliersRead = "SUPPLIERS:READ"
)

// DefaultRoutes is the application's route table. Company-scoped screens
// consult companies for the active selection.
func DefaultRoutes(companies CompanyScope) []*Route {
	companySelected := CompanySelectedGuard(companies)
	return []*Route{
		{Path: "", RedirectTo: PublicHome},
		{Path: "login", Title: "Iniciar sesión", Guards: []Guard{GuestGuard}},
		{Path: "correo", Title: "Correo"},
		{Path: "registrar", Title: "Registrar Gmail", Guards: []Guard{AuthGuard}},
		{Path: "imap-registrar", Title: "Registrar IMAP", Guards: []Guard{AuthGuard}},
		{Path: "correo-privado", Title: "Correo privado", Guards: []Guard{AuthGuard}},
		{Path: "cuentas", Title: "Cuentas", Guards: []Guard{AuthGuard}},
		{Path: "users", Title: "Usuarios", Guards: []Guard{AdminGuard}},
		{Path: "companies", Title: "Empresas", Guards: []Guard{AuthGuard}},
		{
			Path:        "customers",
			Title:       "Clientes",
			Guards:      []Guard{AuthGuard, companySelected, PermissionGuard},
			Permissions: []string{PermCustomersRead},
		},
		{
			Path:        "suppliers",
			Title:       "Proveedores",
			Guards:      []Guard{AuthGuard, companySelected, PermissionGuard},
			Permissions: []string{PermSuppliersRead},
		},
		{Path: Wildcard, RedirectTo: PublicHome},
	}
}
