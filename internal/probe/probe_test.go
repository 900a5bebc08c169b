package probe

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePath struct {
	mu    sync.Mutex
	known map[string]string
	calls map[string]int
}

func newFakePath(known map[string]string) *fakePath {
	return &fakePath{known: known, calls: make(map[string]int)}
}

func (f *fakePath) look(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if p, ok := f.known[name]; ok {
		return p, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func TestCache_Available(t *testing.T) {
	tests := []struct {
		name  string
		known map[string]string
		probe []string
		want  bool
	}{
		{"first candidate", map[string]string{"gs": "/usr/bin/gs"}, []string{"gs", "gswin64c"}, true},
		{"platform name", map[string]string{"gswin64c": `C:\gs\gswin64c.exe`}, []string{"gs", "gswin64c", "gswin32c"}, true},
		{"none", nil, []string{"gs", "gswin64c", "gswin32c"}, false},
		{"empty set", map[string]string{"gs": "/usr/bin/gs"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(newFakePath(tt.known).look)
			assert.Equal(t, tt.want, c.Available(tt.probe...))
		})
	}
}

func TestCache_ProbesOncePerNameSet(t *testing.T) {
	fp := newFakePath(map[string]string{"java": "/usr/bin/java"})
	c := NewCache(fp.look)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Available("gs", "gswin64c")
			c.Available("gswin64c", "gs")
			c.Available("java")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fp.calls["gs"])
	assert.Equal(t, 1, fp.calls["gswin64c"])
	assert.Equal(t, 1, fp.calls["java"])
}

func TestCache_Resolve(t *testing.T) {
	c := NewCache(newFakePath(map[string]string{"gswin32c": "/opt/gswin32c"}).look)

	assert.Equal(t, "/opt/gswin32c", c.Resolve("gs", "gswin32c"))
	assert.Equal(t, "", c.Resolve("camelot"))

	res := c.Probe("gs", "gswin32c")
	assert.True(t, res.Available)
	assert.Equal(t, []string{"gs", "gswin32c"}, res.Names)
}

func TestCache_ResolveKeepsCallerOrder(t *testing.T) {
	fp := newFakePath(map[string]string{"gs": "/usr/bin/gs", "gswin64c": `C:\gs\gswin64c.exe`})
	c := NewCache(fp.look)

	assert.Equal(t, `C:\gs\gswin64c.exe`, c.Resolve("gswin64c", "gs"))
	assert.Equal(t, "/usr/bin/gs", c.Resolve("gs", "gswin64c"))
	assert.Equal(t, `C:\gs\gswin64c.exe`, c.Resolve("gswin64c", "gs"))

	assert.Equal(t, 1, fp.calls["gs"])
	assert.Equal(t, 1, fp.calls["gswin64c"])
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}
