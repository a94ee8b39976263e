package soc

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lunixbochs/rproc/go/boot"
	"github.com/lunixbochs/rproc/go/firmware"
	"github.com/lunixbochs/rproc/go/loader"
	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/sci"
)

const atfEntry = 0x70000000

func words(ins ...uint32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ins)
	return buf.Bytes()
}

func elfFile(t *testing.T, dir, name string, entry, paddr uint64, data []byte) {
	b := &loader.Builder{
		Class:    loader.Class32,
		Machine:  elf.EM_ARM,
		Entry:    entry,
		Segments: []loader.Segment{{Type: elf.PT_LOAD, Paddr: paddr, Data: data, Memsz: 0x100}},
	}
	img, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, name), img, 0644); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	sim *Sim
	loc *firmware.Locator
	out *bytes.Buffer
	dir string
}

func newFixture(t *testing.T, opts Options, env firmware.Env) *fixture {
	dir, err := ioutil.TempDir("", "rproc-soc")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{out: &bytes.Buffer{}, dir: dir}
	opts.Config = &models.Config{Output: f.out}
	opts.Device = models.BootDeviceMMC2
	opts.DDRSize = 0x200000
	f.sim, err = New(boot.J721E(), opts)
	if err != nil {
		t.Fatal(err)
	}
	f.loc = firmware.NewLocator(env, &firmware.DirSource{Root: dir}, f.sim, opts.Config)
	return f
}

func (f *fixture) close() { os.RemoveAll(f.dir) }

func TestBootWithoutImage(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	defer f.close()
	_, state, err := f.sim.Boot(f.loc, atfEntry)
	if err != nil || state != boot.Idle {
		t.Fatalf("Boot() = %s, %v\n%s", state, err, f.out)
	}
	if !reflect.DeepEqual(f.sim.Idled, []uint32{boot.J721E_DEV_MCU_ARMSS0_CPU1, boot.J721E_DEV_MCU_ARMSS0_CPU0}) {
		t.Errorf("idled cores = %v", f.sim.Idled)
	}
	for _, id := range []uint32{boot.J721E_DEV_MCU_RTI0, boot.J721E_DEV_MCU_RTI1} {
		if st, _ := f.sim.Ctrl.DeviceState(id); st != sci.DEVICE_SW_STATE_AUTO_OFF {
			t.Errorf("device %d left in state %d", id, st)
		}
	}
	// ATF still went to the A72
	if addr, ok := f.sim.Ctrl.BootAddr(0x20); !ok || addr != atfEntry {
		t.Errorf("A72 boot vector = %#x, %v", addr, ok)
	}
	if st, _ := f.sim.Ctrl.DeviceState(boot.J721E_DEV_A72SS0_CORE0); st != sci.DEVICE_SW_STATE_ON {
		t.Error("A72 not powered")
	}
	// no aux firmware: the R5F is reset
	if st, _ := f.sim.Ctrl.DeviceState(boot.J721E_DEV_R5FSS0_CORE0); st != sci.DEVICE_SW_STATE_AUTO_OFF {
		t.Error("R5F powered without firmware")
	}
	if len(f.sim.Jumps) != 0 || len(f.sim.Panics) != 0 {
		t.Errorf("jumps %v panics %v", f.sim.Jumps, f.sim.Panics)
	}
}

func TestBootWithImage(t *testing.T) {
	env := firmware.Env{
		"mcur5f0_0fwname":    "local.elf",
		"mcur5f0_0loadaddr":  "0x80000000",
		"mainr5f0_0fwname":   "r5f.elf",
		"mainr5f0_0loadaddr": "0x80100000",
	}
	f := newFixture(t, Options{}, env)
	defer f.close()
	elfFile(t, f.dir, "local.elf", MCU_MSRAM_BASE+0x100, MCU_MSRAM_BASE, []byte("local"))
	elfFile(t, f.dir, "r5f.elf", 0x0, 0x0, []byte("tcm firmware"))

	o, state, err := f.sim.Boot(f.loc, atfEntry)
	if err != nil || state != boot.Execute {
		t.Fatalf("Boot() = %s, %v\n%s", state, err, f.out)
	}
	if !reflect.DeepEqual(f.sim.Jumps, []uint64{MCU_MSRAM_BASE + 0x100}) {
		t.Errorf("jumps = %#x", f.sim.Jumps)
	}
	if o.Trace()[len(o.Trace())-1] != boot.Execute {
		t.Errorf("trace = %v", o.Trace())
	}
	// the R5F firmware landed in ATCM through the window and was flushed
	tcm, _ := f.sim.DeviceRead(0x05c00000, 12)
	if string(tcm) != "tcm firmware" {
		t.Errorf("ATCM holds %q", tcm)
	}
	local, _ := f.sim.DeviceRead(MCU_MSRAM_BASE, 5)
	if string(local) != "local" {
		t.Errorf("MSRAM holds %q", local)
	}
	on := f.sim.Ctrl.On()
	if !reflect.DeepEqual(on, []uint32{boot.J721E_DEV_A72SS0_CORE0, boot.J721E_DEV_R5FSS0_CORE0}) {
		t.Errorf("powered devices = %v", on)
	}
	if !bytes.Contains(f.out.Bytes(), []byte("Remoteproc 2 started successfully")) {
		t.Errorf("output:\n%s", f.out)
	}
}

func TestBootFromUnsupportedDevice(t *testing.T) {
	env := firmware.Env{"mcur5f0_0fwname": "local.elf", "mcur5f0_0loadaddr": "0x80000000"}
	f := newFixture(t, Options{}, env)
	defer f.close()
	elfFile(t, f.dir, "local.elf", MCU_MSRAM_BASE, MCU_MSRAM_BASE, []byte("local"))
	f.sim.SetBootMedia(models.BootDeviceUART, boot.K3_PRIMARY_BOOTMODE)
	if _, state, err := f.sim.Boot(f.loc, atfEntry); err != nil || state != boot.Idle {
		t.Fatalf("Boot() = %s, %v", state, err)
	}
	if !bytes.Contains(f.out.Bytes(), []byte("not supported!")) {
		t.Errorf("output:\n%s", f.out)
	}
}

func TestShutdownFailureHalts(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	defer f.close()
	// a device the controller does not know NAKs the put
	f.sim.Profile.PutDevices = append(f.sim.Profile.PutDevices, 999)
	_, state, err := f.sim.Boot(f.loc, atfEntry)
	if !boot.IsFatal(err) || state != boot.ShutdownAndIdle {
		t.Fatalf("Boot() = %s, %v", state, err)
	}
	if len(f.sim.Panics) != 1 || f.sim.Events != 0 {
		t.Errorf("panics %d events %d", len(f.sim.Panics), f.sim.Events)
	}
	if len(f.sim.Ctrl.Pending()) != 0 {
		t.Error("cores queued for shutdown after the failure")
	}
}

func TestRegisters(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	defer f.close()
	prof := f.sim.Profile
	if err := prof.UnlockAll(f.sim); err != nil {
		t.Fatal(err)
	}
	// MMR writes are uncached
	dev, _ := f.sim.DeviceRead(0x43000000+boot.CTRLMMR_LOCK_KICK0, 4)
	if binary.LittleEndian.Uint32(dev) != boot.CTRLMMR_LOCK_KICK0_UNLOCK_VAL {
		t.Errorf("kick0 = %x", dev)
	}
	if _, err := f.sim.ReadReg(0x10); err == nil {
		t.Error("read of unmapped register succeeded")
	}
	ctx, err := boot.CaptureBootContext(f.sim, prof, nil, atfEntry)
	if err != nil || ctx.Device != models.BootDeviceMMC2 {
		t.Errorf("context = %+v, %v", ctx, err)
	}
}

func TestEmulatedCores(t *testing.T) {
	env := firmware.Env{"mainr5f0_0fwname": "r5f.elf", "mainr5f0_0loadaddr": "0x80100000"}
	f := newFixture(t, Options{Emulate: true, EmuLimit: 64}, env)
	defer f.close()
	// mov r0, #1; str r0, [r1]; b .  with r1 = 0
	elfFile(t, f.dir, "r5f.elf", 0x0, 0x0, words(0xe3a00001, 0xe5810000, 0xeafffffe))
	// ATF stub: b .
	f.sim.MemWrite(atfEntry, words(0x14000000))

	if _, state, err := f.sim.Boot(f.loc, atfEntry); err != nil || state != boot.Idle {
		t.Fatalf("Boot() = %s, %v\n%s", state, err, f.out)
	}
	if len(f.sim.Runs) != 2 {
		t.Fatalf("%d runs\n%s", len(f.sim.Runs), f.out)
	}
	r5, a72 := f.sim.Runs[0], f.sim.Runs[1]
	if r5.Core != "main_r5fss0_core0" || r5.Err != nil || r5.Result.PC != 8 {
		t.Errorf("R5F run = %+v", r5)
	}
	// the store through the ATCM alias is visible at the bus address
	word, _ := f.sim.DeviceRead(0x05c00000, 4)
	if binary.LittleEndian.Uint32(word) != 1 {
		t.Errorf("ATCM word = %x", word)
	}
	if a72.Core != "a72ss0_core0" || a72.Err != nil || a72.Result.PC != atfEntry {
		t.Errorf("A72 run = %+v", a72)
	}
}
