package sink

import (
	"context"
	"fmt"
	"testing"
)

type memSink struct {
	name   string
	writes []string
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Write(ctx context.Context, dest string, value any) error {
	m.writes = append(m.writes, fmt.Sprintf("%s=%v", dest, value))
	return nil
}

func TestRegistryRouting(t *testing.T) {
	file := &memSink{name: "file"}
	a := &memSink{name: "a"}
	b := &memSink{name: "b"}

	r := NewRegistry(file)
	r.AddStore("a", a)
	r.AddStore("b", b)

	tests := []struct {
		dest     string
		wantSink string
		wantArg  string
	}{
		{"out/results.json", "file", "out/results.json"},
		{"notes.txt", "file", "notes.txt"},
		{`win\style`, "file", `win\style`},
		{"a:leads", "a", "leads"},
		{"b:leads", "b", "leads"},
		{"leads", "a", "leads"}, // bare token goes to the default store
	}
	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			s, arg, err := r.Route(tt.dest)
			if err != nil {
				t.Fatal(err)
			}
			if s.Name() != tt.wantSink || arg != tt.wantArg {
				t.Errorf("Route(%q) = %s, %q; want %s, %q", tt.dest, s.Name(), arg, tt.wantSink, tt.wantArg)
			}
		})
	}
}

func TestRegistryDefaultOverride(t *testing.T) {
	r := NewRegistry(nil)
	r.AddStore("a", &memSink{name: "a"})
	r.AddStore("b", &memSink{name: "b"})
	r.SetDefault("b")

	s, _, err := r.Route("leads")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "b" {
		t.Errorf("default store = %s, want b", s.Name())
	}
}

func TestRegistryRouteErrors(t *testing.T) {
	r := NewRegistry(nil)
	if _, _, err := r.Route("file.json"); err == nil {
		t.Error("path destination without a file sink should fail")
	}
	if _, _, err := r.Route("unknown:leads"); err == nil {
		t.Error("unknown store should fail")
	}
	if _, _, err := r.Route("leads"); err == nil {
		t.Error("bare destination without a default store should fail")
	}
}

func TestRegistryWrite(t *testing.T) {
	store := &memSink{name: "a"}
	r := NewRegistry(nil)
	r.AddStore("a", store)

	if err := r.Write(context.Background(), "a:leads", "hello"); err != nil {
		t.Fatal(err)
	}
	if len(store.writes) != 1 || store.writes[0] != "leads=hello" {
		t.Errorf("writes = %v", store.writes)
	}
}

func TestLooksLikePath(t *testing.T) {
	tests := []struct {
		dest string
		want bool
	}{
		{"results.json", true},
		{"dir/leads", true},
		{"leads", false},
		{"redis:leads", false},
		{".hidden", false}, // leading dot is not an extension
		{"trailing.", false},
	}
	for _, tt := range tests {
		if got := looksLikePath(tt.dest); got != tt.want {
			t.Errorf("looksLikePath(%q) = %v, want %v", tt.dest, got, tt.want)
		}
	}
}
