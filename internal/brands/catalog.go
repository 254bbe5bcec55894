package brands

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the serializable form of the registry.
type Catalog struct {
	Defaults map[Category]string `yaml:"defaults" json:"defaults" validate:"required"`
	Brands   []Rule              `yaml:"brands" json:"brands" validate:"required,min=1,dive"`
}

var validate = validator.New()

func (c Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid brand catalog: %w", err)
	}
	seen := make(map[string]Category, len(c.Brands))
	for _, b := range c.Brands {
		key := strings.ToLower(strings.TrimSpace(b.Name))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("invalid brand catalog: duplicate brand %q", b.Name)
		}
		seen[key] = b.Category
		if (len(b.Patterns) == 0) == (len(b.Shades) == 0) {
			return fmt.Errorf("invalid brand catalog: brand %q needs exactly one of patterns or shades", b.Name)
		}
		if b.IsRTU() && !strings.EqualFold(strings.TrimSpace(b.Developer), DeveloperNone) {
			return fmt.Errorf("invalid brand catalog: RTU brand %q must use developer %q", b.Name, DeveloperNone)
		}
	}
	for _, cat := range Categories {
		name, ok := c.Defaults[cat]
		if !ok {
			return fmt.Errorf("invalid brand catalog: no default brand for %s", cat)
		}
		got, ok := seen[strings.ToLower(strings.TrimSpace(name))]
		if !ok || got != cat {
			return fmt.Errorf("invalid brand catalog: default %q is not a %s brand", name, cat)
		}
	}
	return nil
}

func ParseYAML(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse brand catalog: %w", err)
	}
	return c, nil
}

func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read brand catalog: %w", err)
	}
	return ParseYAML(data)
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseYAML(defaultCatalogYAML)
}

// Open builds a registry from the first configured source: a SQLite database,
// a YAML file, or the embedded default catalog.
func Open(yamlPath, sqlitePath string) (*Registry, error) {
	var (
		c   Catalog
		err error
	)
	switch {
	case strings.TrimSpace(sqlitePath) != "":
		store, openErr := OpenSQLiteCatalog(sqlitePath)
		if openErr != nil {
			return nil, openErr
		}
		defer store.Close()
		c, err = store.Load()
	case strings.TrimSpace(yamlPath) != "":
		c, err = LoadFile(yamlPath)
	default:
		c, err = DefaultCatalog()
	}
	if err != nil {
		return nil, err
	}
	return NewRegistry(c)
}
