package ui

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/boot"
	"github.com/lunixbochs/rproc/go/firmware"
	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/soc"
)

func newShell(t *testing.T) (*Shell, *bytes.Buffer, string) {
	dir, err := ioutil.TempDir("", "rproc-ui")
	if err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	config := &models.Config{Output: out}
	sim, err := soc.New(boot.J721E(), soc.Options{Config: config, Device: models.BootDeviceMMC2, DDRSize: 0x200000})
	if err != nil {
		t.Fatal(err)
	}
	loc := firmware.NewLocator(nil, &firmware.DirSource{Root: dir}, sim, config)
	loc.InitEnv(models.BootDeviceMMC2)
	return &Shell{Sim: sim, Loc: loc, Out: out, Entry: 0x70000000}, out, dir
}

func run(t *testing.T, s *Shell, lines ...string) {
	for _, line := range lines {
		if err := s.Exec(line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
}

func TestShellEnv(t *testing.T) {
	s, out, dir := newShell(t)
	defer os.RemoveAll(dir)
	run(t, s, "env set fw a b", "env print fw")
	if !strings.Contains(out.String(), "fw=a b\n") {
		t.Errorf("output = %q", out)
	}
	run(t, s, "env set fw")
	if err := s.Exec("env print fw"); err == nil {
		t.Error("deleted variable still printed")
	}
	out.Reset()
	run(t, s, "env print")
	if !strings.Contains(out.String(), "storage_interface=mmc\n") {
		t.Errorf("env print = %q", out)
	}
}

func TestShellMemory(t *testing.T) {
	s, out, dir := newShell(t)
	defer os.RemoveAll(dir)
	if err := s.Sim.WriteUint(0x80000000, 4, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	run(t, s, "md 0x80000000 5")
	want := "80000000: deadbeef 00000000 00000000 00000000\n80000010: 00000000\n"
	if out.String() != want {
		t.Errorf("md = %q, want %q", out, want)
	}
	if !s.Sim.Dirty(0x80000000, 4) {
		t.Fatal("write should sit in the cache")
	}
	run(t, s, "dcache flush 80000000 40")
	if s.Sim.Dirty(0x80000000, 4) {
		t.Error("dcache flush left the line dirty")
	}
}

func TestShellRproc(t *testing.T) {
	s, out, dir := newShell(t)
	defer os.RemoveAll(dir)
	if err := s.Exec("rproc load 1 70000000 200"); err == nil {
		t.Error("load before init succeeded")
	}
	run(t, s, "rproc init", "rproc init")
	if !strings.Contains(out.String(), "Already initialized") {
		t.Errorf("second init: %q", out)
	}
	run(t, s, "rproc load 1 70000000 200", "rproc start 1")
	out.Reset()
	run(t, s, "rproc list")
	if !strings.Contains(out.String(), "boot 0x70000000") {
		t.Errorf("rproc list = %q", out)
	}
	on := s.Sim.Ctrl.On()
	if len(on) != 1 || on[0] != boot.J721E_DEV_A72SS0_CORE0 {
		t.Errorf("powered devices = %v", on)
	}
	run(t, s, "rproc reset 1")
}

func TestShellFwload(t *testing.T) {
	s, out, dir := newShell(t)
	defer os.RemoveAll(dir)
	if err := ioutil.WriteFile(filepath.Join(dir, "fw.bin"), []byte("firmware"), 0644); err != nil {
		t.Fatal(err)
	}
	run(t, s, "env set name fw.bin", "env set addr 0x80001000", "fwload name addr")
	if !strings.Contains(out.String(), "8 bytes read to 0x80001000") {
		t.Errorf("fwload = %q", out)
	}
	p, err := s.Sim.MemRead(0x80001000, 8)
	if err != nil || string(p) != "firmware" {
		t.Errorf("memory = %q, %v", p, err)
	}
}

func TestShellBoot(t *testing.T) {
	s, out, dir := newShell(t)
	defer os.RemoveAll(dir)
	run(t, s, "boot")
	if !strings.Contains(out.String(), "boot finished in "+boot.Idle.String()) {
		t.Errorf("boot = %q", out)
	}
	if err := s.Exec("boot"); err == nil {
		t.Error("second boot accepted")
	}
}

func TestShellErrors(t *testing.T) {
	s, _, dir := newShell(t)
	defer os.RemoveAll(dir)
	if err := s.Exec("frobnicate"); !errors.Is(err, UnknownCommand) {
		t.Errorf("Exec(frobnicate) = %v", err)
	}
	for _, line := range []string{"rproc", "rproc start x", "md", "md zz", "dcache flush 0", "env"} {
		if err := s.Exec(line); err == nil {
			t.Errorf("%q accepted", line)
		}
	}
	if err := s.Exec("   "); err != nil {
		t.Errorf("blank line: %v", err)
	}
}
