package provisioning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/tenant"
)

// vhostTemplate renders the per-tenant Apache virtual host. Values are
// emitted as explicit fields and an ordered env-assignment list rather than
// ad-hoc string interpolation; the customer id is validated before any
// stage runs.
var vhostTemplate = template.Must(template.New("vhost").Parse(`<VirtualHost *:80>
    ServerName {{.ServerName}}
    ServerAlias {{.ServerAlias}}
    DocumentRoot {{.DocumentRoot}}

{{range .Env}}    SetEnv {{.Name}} "{{.Value}}"
{{end}}</VirtualHost>
`))

type envAssignment struct {
	Name  string
	Value string
}

type vhostData struct {
	ServerName   string
	ServerAlias  string
	DocumentRoot string
	Env          []envAssignment
}

// VhostParams holds the shared values rendered into every tenant vhost.
type VhostParams struct {
	Domain           string
	DatabaseHost     string
	DatabaseUser     string
	DatabasePassword string
	DatabasePort     int
}

// VhostWriter injects the tenant virtual-host fragment into a working tree.
type VhostWriter struct {
	params VhostParams
}

// NewVhostWriter constructs the config-write stage.
func NewVhostWriter(params VhostParams) *VhostWriter {
	if params.Domain == "" {
		panic("domain is required")
	}
	return &VhostWriter{params: params}
}

// Write renders `<customer>.conf` into the tree's `.ebextensions/vhosts`
// directory. A missing vhosts directory means the artifact layout is not
// what this pipeline expects and is reported as a config-write failure.
func (w *VhostWriter) Write(_ context.Context, tree service.WorkingTree, customer string) error {
	vhostsDir := filepath.Join(tree.Root, ".ebextensions", "vhosts")
	if info, err := os.Stat(vhostsDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: vhosts directory %s missing from artifact", service.ErrConfigWrite, vhostsDir)
	}

	fqdn := tenant.FQDN(customer, w.params.Domain)
	data := vhostData{
		ServerName:   fqdn,
		ServerAlias:  "www." + fqdn,
		DocumentRoot: tenant.DocumentRoot(customer),
		Env: []envAssignment{
			{Name: "RDS_HOSTNAME", Value: w.params.DatabaseHost},
			{Name: "RDS_DB_NAME", Value: tenant.DatabaseName(customer)},
			{Name: "RDS_USERNAME", Value: w.params.DatabaseUser},
			{Name: "RDS_PASSWORD", Value: w.params.DatabasePassword},
			{Name: "RDS_PORT", Value: strconv.Itoa(w.params.DatabasePort)},
		},
	}

	out, err := os.Create(filepath.Join(vhostsDir, tenant.VhostFileName(customer)))
	if err != nil {
		return fmt.Errorf("%w: %v", service.ErrConfigWrite, err)
	}
	defer out.Close()

	if err := vhostTemplate.Execute(out, data); err != nil {
		return fmt.Errorf("%w: render vhost: %v", service.ErrConfigWrite, err)
	}

	return nil
}
