package module

import (
	"path/filepath"
	"testing"

	"jlvm/internal/bytecode"
)

func buildSample(name string) *Module {
	b := NewBuilder(name, "<test>")
	b.Val(bytecode.PUSH, bytecode.IntLiteral(41), 1, 0)
	b.Val(bytecode.PUSH, bytecode.IntLiteral(1), 1, 0)
	b.NoParam(bytecode.ADD, 1, 0)
	entry := b.IP()
	b.ID(bytecode.GET, "answer", 2, 0)
	b.NoParam(bytecode.EXIT, 2, 0)
	b.DefineRef("main", entry)
	b.DefineClass("Widget", []string{"Base"}, map[string]uint32{"spin": 0})
	return b.Build()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	orig := buildSample("sample")
	path := filepath.Join(t.TempDir(), "sample.jb")

	if err := Save(orig, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.Name != orig.Name {
		t.Errorf("Name = %q, want %q", loaded.Name, orig.Name)
	}
	if len(loaded.Instructions) != len(orig.Instructions) {
		t.Fatalf("Instructions length = %d, want %d", len(loaded.Instructions), len(orig.Instructions))
	}
	for i, ins := range orig.Instructions {
		got := loaded.Instructions[i]
		if got.Op != ins.Op || got.Param != ins.Param {
			t.Errorf("instruction %d = %+v, want %+v", i, got, ins)
		}
		if ins.Param == bytecode.IDParam && got.ID != ins.ID {
			t.Errorf("instruction %d ID = %q, want %q", i, got.ID, ins.ID)
		}
	}
	if ip, ok := loaded.Refs["main"]; !ok || ip != orig.Refs["main"] {
		t.Errorf("Refs[main] = %v,%v want %v,true", ip, ok, orig.Refs["main"])
	}
	cd, ok := loaded.Classes["Widget"]
	if !ok {
		t.Fatal("Classes[Widget] missing after round trip")
	}
	if len(cd.ParentNames) != 1 || cd.ParentNames[0] != "Base" {
		t.Errorf("Widget.ParentNames = %v, want [Base]", cd.ParentNames)
	}
	if ip, ok := cd.Methods["spin"]; !ok || ip != 0 {
		t.Errorf("Widget.Methods[spin] = %v,%v want 0,true", ip, ok)
	}
	if !loaded.Frozen() {
		t.Error("loaded module should be frozen")
	}
	if loaded.Interned == nil {
		t.Error("loaded module should carry a sealed intern table")
	}
	if got := loaded.Interned.String(0); got == "" {
		t.Error("Interned table lookup returned empty string for index 0")
	}
}

func TestFindModuleFileSearchesPath(t *testing.T) {
	dir := t.TempDir()
	orig := buildSample("located")
	if err := Save(orig, filepath.Join(dir, "located.jb")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path, err := findModuleFile("located", []string{dir})
	if err != nil {
		t.Fatalf("findModuleFile() error: %v", err)
	}
	if path != filepath.Join(dir, "located.jb") {
		t.Errorf("findModuleFile() = %q, want %q", path, filepath.Join(dir, "located.jb"))
	}

	if _, err := findModuleFile("nowhere", []string{dir}); err == nil {
		t.Error("findModuleFile() should error for a name not on the search path")
	}
}

func TestLoaderCachesByName(t *testing.T) {
	dir := t.TempDir()
	if err := Save(buildSample("cached"), filepath.Join(dir, "cached.jb")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	l := NewLoader()
	l.AddSearchPath(dir)

	first, err := l.Load("cached")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	second, err := l.Load("cached")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if first != second {
		t.Error("Loader.Load() did not return the cached *Module on second call")
	}
}
