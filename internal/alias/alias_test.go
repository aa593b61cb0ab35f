package alias

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/dbtest"
	"github.com/zulandar/testyard/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", "MyProject", true},
		{"dash and underscore", "my-project_2", true},
		{"max length", strings.Repeat("a", MaxLength), true},
		{"empty", "", false},
		{"wildcard", "*", false},
		{"too long", strings.Repeat("a", MaxLength+1), false},
		{"slash", "My/Project", false},
		{"backslash", `My\Project`, false},
		{"dollar", "My$", false},
		{"star inside", "a*b", false},
		{"angle", "a<b", false},
		{"colon", "a:b", false},
		{"pipe", "a|b", false},
		{"question", "a?b", false},
		{"dot", "a.b", false},
		{"space", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.ok && err != nil {
				t.Fatalf("Validate(%q) = %v, want nil", tt.input, err)
			}
			if !tt.ok && !errors.Is(err, apperr.ErrProjectNameInvalid) {
				t.Fatalf("Validate(%q) = %v, want ErrProjectNameInvalid", tt.input, err)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"MyProject", "myproject"},
		{"My/Pro.ject", "myproject"},
		{"A B*C", "abc"},
		{strings.Repeat("X", 80), strings.Repeat("x", MaxLength)},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistry_RegisterAndProvide(t *testing.T) {
	r := NewRegistry()
	alias, err := r.Register("MyProject", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if alias != "myproject" {
		t.Errorf("alias = %q, want myproject", alias)
	}

	for _, key := range []string{"MyProject", "myproject", "MYPROJECT"} {
		got, ok := r.Provide(key)
		if !ok || got != "myproject" {
			t.Errorf("Provide(%q) = (%q, %v), want (myproject, true)", key, got, ok)
		}
	}
	if r.Contains("other") {
		t.Error("Contains(other) = true, want false")
	}
}

func TestRegistry_ExplicitAlias(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("Legacy", "legacy_v1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got, _ := r.Provide("legacy"); got != "legacy_v1" {
		t.Errorf("Provide(legacy) = %q, want legacy_v1", got)
	}
	if got, _ := r.Provide("LEGACY_V1"); got != "legacy_v1" {
		t.Errorf("Provide(LEGACY_V1) = %q, want legacy_v1", got)
	}
}

func TestRegistry_Idempotent(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("Proj", ""); err != nil {
		t.Fatal(err)
	}
	before := r.Len()
	if _, err := r.Register("Proj", ""); err != nil {
		t.Fatal(err)
	}
	if r.Len() != before {
		t.Errorf("Len after second Register = %d, want %d", r.Len(), before)
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("My/Project", ""); !errors.Is(err, apperr.ErrProjectNameInvalid) {
		t.Fatalf("Register(My/Project) = %v, want ErrProjectNameInvalid", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("ghost"); !errors.Is(err, apperr.ErrProjectNotRegistered) {
		t.Fatalf("Resolve(ghost) = %v, want ErrProjectNotRegistered", err)
	}
}

func TestRegistry_Load(t *testing.T) {
	db := dbtest.Open(t)
	db.Create(&models.Project{Name: "Alpha", Alias: "alpha"})
	db.Create(&models.Project{Name: "Beta", Alias: "beta"})

	r := NewRegistry()
	if err := r.Load(db); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"Alpha", "beta"} {
		if !r.Contains(name) {
			t.Errorf("Contains(%q) = false after Load", name)
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("Shared", "")
		}()
		go func() {
			defer wg.Done()
			r.Provide("shared")
		}()
	}
	wg.Wait()
	if got, ok := r.Provide("Shared"); !ok || got != "shared" {
		t.Errorf("Provide(Shared) = (%q, %v)", got, ok)
	}
}
