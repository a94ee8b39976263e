package firmware

import (
	"bytes"
	"flag"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/models/cpu"
	"github.com/lunixbochs/rproc/go/models/mock"
)

func TestEnvGetHex(t *testing.T) {
	env := Env{"a": "0x82000000", "b": "82000000", "c": "zz", "d": "0XfF", "e": ""}
	tests := []struct {
		name string
		want uint64
	}{
		{"a", 0x82000000},
		{"b", 0x82000000},
		{"c", 7},
		{"d", 0xff},
		{"e", 7},
		{"missing", 7},
	}
	for _, test := range tests {
		if got := env.GetHex(test.name, 7); got != test.want {
			t.Errorf("GetHex(%q) = %#x, want %#x", test.name, got, test.want)
		}
	}
}

func TestEnvFlag(t *testing.T) {
	env := make(Env)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	fs.Var(env, "set", "")
	err := fs.Parse([]string{"-set", "fw10=x", "-set", "fw2=a=b", "-set", "fw1=y", "-set", "fw1="})
	if err != nil {
		t.Fatal(err)
	}
	if env.Get("fw2") != "a=b" {
		t.Errorf("fw2 = %q", env.Get("fw2"))
	}
	if _, ok := env["fw1"]; ok {
		t.Error("empty value did not delete fw1")
	}
	if env.String() != "fw2=a=b fw10=x" {
		t.Errorf("String() = %q", env.String())
	}
	if err := env.Set("novalue"); err == nil {
		t.Error("assignment without = accepted")
	}
	if err := env.Set("=x"); err == nil {
		t.Error("assignment without a name accepted")
	}
}

func TestInitEnv(t *testing.T) {
	var out bytes.Buffer
	l := NewLocator(Env{"bootpart": "1:2"}, nil, nil, &models.Config{Output: &out})
	l.InitEnv(models.BootDeviceMMC2)
	if l.Env.Get("storage_interface") != "mmc" || l.Env.Get("fw_dev_part") != "1:2" {
		t.Errorf("MMC2 env = %v", l.Env)
	}

	l = NewLocator(nil, nil, nil, &models.Config{Output: &out})
	l.InitEnv(models.BootDeviceSPI)
	want := Env{"storage_interface": "ubi", "fw_ubi_mtdpart": "UBI", "fw_ubi_volume": "UBI0"}
	if !reflect.DeepEqual(l.Env, want) {
		t.Errorf("SPI env = %v", l.Env)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}

	l = NewLocator(nil, nil, nil, &models.Config{Output: &out})
	l.InitEnv(models.BootDeviceUART)
	if len(l.Env) != 0 || out.String() != "init_env from device 7 not supported!\n" {
		t.Errorf("UART: env %v, output %q", l.Env, out.String())
	}
}

type mapSource map[string][]byte

func (m mapSource) ReadFile(name string) ([]byte, error) {
	if d, ok := m[name]; ok {
		return d, nil
	}
	return nil, errors.Errorf("%s: file not found", name)
}

func (m mapSource) List() ([]string, error) { return nil, nil }

func newLocator(t *testing.T, env Env) (*Locator, *mock.Platform, *bytes.Buffer) {
	p := mock.NewPlatform()
	if err := p.MemMap(0x82000000, 0x10000, cpu.PROT_ALL, "DDR"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	src := mapSource{"r5f.elf": []byte("firmware bytes")}
	l := NewLocator(env, src, p, &models.Config{Output: &out})
	l.InitEnv(models.BootDeviceMMC2)
	return l, p, &out
}

func TestLocate(t *testing.T) {
	l, p, _ := newLocator(t, Env{"fw": "r5f.elf", "addr": "0x82000100"})
	size, addr, err := l.Locate("fw", "addr")
	if err != nil {
		t.Fatal(err)
	}
	if size != 14 || addr != 0x82000100 {
		t.Errorf("Locate() = %d, %#x", size, addr)
	}
	got, _ := p.MemRead(addr, uint64(size))
	if string(got) != "firmware bytes" {
		t.Errorf("memory holds %q", got)
	}
}

func TestLocateNothing(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		err  bool
	}{
		{"no address", Env{"fw": "r5f.elf"}, false},
		{"zero address", Env{"fw": "r5f.elf", "addr": "0"}, false},
		{"bad address", Env{"fw": "r5f.elf", "addr": "nope"}, false},
		{"no name", Env{"addr": "0x82000000"}, true},
		{"missing file", Env{"fw": "a53.elf", "addr": "0x82000000"}, true},
		{"unmapped address", Env{"fw": "r5f.elf", "addr": "0x90000000"}, true},
	}
	for _, test := range tests {
		l, _, _ := newLocator(t, test.env)
		size, _, err := l.Locate("fw", "addr")
		if size != 0 || (err != nil) != test.err {
			t.Errorf("%s: Locate() = %d, %v", test.name, size, err)
		}
	}
	l, _, _ := newLocator(t, Env{"addr": "0x82000000"})
	if _, _, err := l.Locate("fw", "addr"); !errors.Is(err, NoFirmwareName) {
		t.Errorf("err = %v, want NoFirmwareName", err)
	}
}

func TestLocateOtherDevice(t *testing.T) {
	l, p, out := newLocator(t, Env{"fw": "r5f.elf", "addr": "0x82000000"})
	out.Reset()
	l.InitEnv(models.BootDeviceSPI)
	size, addr, err := l.Locate("fw", "addr")
	if size != 0 || addr != 0 || err != nil {
		t.Errorf("Locate() = %d, %#x, %v", size, addr, err)
	}
	if !strings.Contains(out.String(), "Loading rproc fw image from device 3 not supported!") {
		t.Errorf("output = %q", out.String())
	}
	if p.Dirty(0x82000000, 0x10000) {
		t.Error("memory written")
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		os.MkdirAll(filepath.Dir(p), 0755)
		if err := ioutil.WriteFile(p, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDirSource(t *testing.T) {
	dir, err := ioutil.TempDir("", "rproc-fw")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	writeFiles(t, dir, map[string]string{"fw10.elf": "10", "fw2.elf": "2", "fw1.elf": "1", "sub/x": "x"})

	src := &DirSource{Root: dir}
	names, err := src.List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"fw1.elf", "fw2.elf", "fw10.elf"}) {
		t.Errorf("List() = %v", names)
	}
	if data, err := src.ReadFile("sub/x"); err != nil || string(data) != "x" {
		t.Errorf("ReadFile(sub/x) = %q, %v", data, err)
	}
	if data, err := src.ReadFile("../../fw2.elf"); err != nil || string(data) != "2" {
		t.Errorf("ReadFile(../../fw2.elf) = %q, %v", data, err)
	}
	if _, err := src.ReadFile("nope"); err == nil {
		t.Error("missing file read")
	}
}

// needs mkfs.ext4 with -d support
func TestExt4Source(t *testing.T) {
	mkfs, err := exec.LookPath("mkfs.ext4")
	if err != nil {
		t.Skip("mkfs.ext4 not installed")
	}
	dir, err := ioutil.TempDir("", "rproc-ext4")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	root := filepath.Join(dir, "root")
	writeFiles(t, root, map[string]string{"lib/firmware/r5f.elf": "r5f firmware", "boot.bin": "boot"})
	img := filepath.Join(dir, "sd.img")
	if err := ioutil.WriteFile(img, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(img, 4<<20); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command(mkfs, "-q", "-F", "-d", root, img).CombinedOutput(); err != nil {
		t.Skipf("mkfs.ext4 failed: %v\n%s", err, out)
	}

	src, err := OpenExt4(img, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	data, err := src.ReadFile("/lib/firmware/r5f.elf")
	if err != nil || string(data) != "r5f firmware" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
	if _, err := src.ReadFile("lib/firmware/a72.elf"); err == nil {
		t.Error("missing file read")
	}
	names, err := src.List()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range names {
		found = found || n == "boot.bin"
	}
	if !found {
		t.Errorf("List() = %v", names)
	}
}

func TestExt4Rejects(t *testing.T) {
	if _, err := NewExt4Source(bytes.NewReader(make([]byte, 4096))); err == nil {
		t.Error("zeroed image accepted as ext4")
	}
	if _, err := OpenExt4("/nonexistent/sd.img", 0); err == nil {
		t.Error("missing image opened")
	}
}
