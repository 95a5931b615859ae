package erp

import (
	"fmt"
	"sort"
	"sync"

	"github.com/siphon-data/siphon/errkind"
)

// ApiSpec describes how one ERP's HTTP API shapes extraction calls: where the
// records live in the response envelope, how pagination and change-since
// parameters are spelled, and which path serves a data type.
type ApiSpec struct {
	Method         string
	PathFor        func(dataType string) string
	RecordsField   string // envelope field holding the record array.
	TokenField     string // envelope field holding the continuation token, "" when unsupported.
	TokenParam     string // query parameter carrying the token on the next call.
	PageSizeParam  string
	OffsetParam    string
	WatermarkParam string // change-since query parameter for incremental mode.
}

// DbSpec describes how one ERP's database shapes extraction queries.
type DbSpec struct {
	TableFor      func(dataType string) string
	DefaultFilter string // full-extract filter, e.g. an unprocessed flag.
	OrderBy       string // deterministic ordering column, "" to skip.
}

// Spec is the per-ERP connector specification resolved by ERP type.
// An ERP may support either or both access styles.
type Spec struct {
	Name string
	Api  *ApiSpec
	Db   *DbSpec
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]Spec)
)

// Register adds a connector spec. Registration is explicit and happens at
// startup; duplicate names panic early since that is a programming error.
func Register(spec Spec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[spec.Name]; exists {
		panic(fmt.Sprintf("connector %q registered twice", spec.Name))
	}
	registry[spec.Name] = spec
}

// Resolve maps an ERP type to its connector spec.
func Resolve(erpType string) (Spec, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	spec, ok := registry[erpType]
	if !ok {
		return Spec{}, errkind.Newf(errkind.KindConfiguration, "no connector registered for ERP type %q (supported: %v)", erpType, registeredNamesLocked())
	}
	return spec, nil
}

// RegisteredNames lists the registered ERP types, sorted.
func RegisteredNames() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registeredNamesLocked()
}

func registeredNamesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
