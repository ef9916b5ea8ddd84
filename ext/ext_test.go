package ext

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	exts, err := Resolve([]string{"mathx", "controlx"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 2 || exts[0].ID() != "mathx" || exts[1].ID() != "controlx" {
		t.Errorf("resolved %v", exts)
	}
	if _, err := Resolve([]string{"mathx", "nope"}); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("unknown id: %v", err)
	}
}

func TestHooks_InstallsAll(t *testing.T) {
	exts, _ := Resolve(IDs())
	h, err := Hooks(exts)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(h.Installed(), ","); got != "controlx,mathx" {
		t.Errorf("installed %s", got)
	}
	if fp := h.Fingerprint(); !strings.Contains(fp, "mathx") || !strings.Contains(fp, "controlx") {
		t.Errorf("fingerprint %q", fp)
	}
	if n := len(Primitives(exts)); n != 2 {
		t.Errorf("%d primitive sets", n)
	}
}
