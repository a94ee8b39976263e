package boot

import (
	"encoding/json"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"

	"github.com/lunixbochs/rproc/go/rproc"
)

// CoreConfig describes one remote processor of the SoC.
type CoreConfig struct {
	RprocID int    `json:"rproc_id"`
	Name    string `json:"name"`
	// "arm64" cores take raw images, "r5f" cores take ELF and map TCMs
	Kind    string         `json:"kind"`
	ProcID  uint8          `json:"proc_id"`
	DevID   uint32         `json:"dev_id"`
	Windows []rproc.Window `json:"windows,omitempty"`
	Strict  bool           `json:"strict,omitempty"`
	// Memory the core can run from, mapped by simulators.
	Memory []rproc.Window `json:"memory,omitempty"`
}

// AuxCore is a core started with its own firmware before the primary boot
// path runs.
type AuxCore struct {
	RprocID   int    `json:"rproc_id"`
	FwNameVar string `json:"fw_name_var"`
	FwAddrVar string `json:"fw_addr_var"`
}

type MMRPartitions struct {
	Base       uint64   `json:"base"`
	Partitions []uint32 `json:"partitions"`
}

// Profile holds everything SoC specific: register addresses, fixed device
// and core ids, and the remote processor layout.
type Profile struct {
	Name   string `json:"name"`
	HostID uint8  `json:"host_id"`

	BootParamTableIndex uint64          `json:"boot_param_table_index"`
	WkupDevstat         uint64          `json:"wkup_devstat"`
	MainDevstat         uint64          `json:"main_devstat"`
	MMR                 []MMRPartitions `json:"mmr"`

	// the core that runs the next stage, and how much of it to hand over
	PrimaryCore     int    `json:"primary_core"`
	PrimaryLoadSize uint64 `json:"primary_load_size"`
	FwNameVar       string `json:"fw_name_var"`
	FwAddrVar       string `json:"fw_addr_var"`

	AuxCores []AuxCore `json:"aux_cores"`
	// ShutdownAndIdle puts these devices, then queues these cores for
	// shutdown, in order. Dependent cores come first.
	PutDevices    []uint32 `json:"put_devices"`
	ShutdownCores []uint8  `json:"shutdown_cores"`

	Cores []CoreConfig `json:"cores"`

	// Start the primary core before looking at the local image, as vendor
	// SPL does.
	StartPrimaryFirst bool `json:"start_primary_first"`
	StartTimeoutMs    int  `json:"start_timeout_ms"`
}

const (
	J721E_DEV_MCU_RTI0        = 262
	J721E_DEV_MCU_RTI1        = 263
	J721E_DEV_MCU_ARMSS0_CPU0 = 250
	J721E_DEV_MCU_ARMSS0_CPU1 = 251
	J721E_DEV_A72SS0_CORE0    = 202
	J721E_DEV_R5FSS0_CORE0    = 245
)

// J721E returns the compiled-in profile.
func J721E() *Profile {
	return &Profile{
		Name:                "j721e",
		HostID:              35,
		BootParamTableIndex: 0x41c7fbfc,
		WkupDevstat:         0x43000030,
		MainDevstat:         0x00100030,
		MMR: []MMRPartitions{
			{Base: 0x43000000, Partitions: []uint32{0, 1, 2, 3, 4, 6, 7}},
			{Base: 0x40f00000, Partitions: []uint32{0, 1, 2, 3, 4}},
			{Base: 0x00100000, Partitions: []uint32{0, 1, 2, 3, 4, 5, 6, 7}},
		},
		PrimaryCore:     1,
		PrimaryLoadSize: 0x200,
		FwNameVar:       "mcur5f0_0fwname",
		FwAddrVar:       "mcur5f0_0loadaddr",
		AuxCores: []AuxCore{
			{RprocID: 2, FwNameVar: "mainr5f0_0fwname", FwAddrVar: "mainr5f0_0loadaddr"},
		},
		PutDevices:    []uint32{J721E_DEV_MCU_RTI0, J721E_DEV_MCU_RTI1},
		ShutdownCores: []uint8{J721E_DEV_MCU_ARMSS0_CPU1, J721E_DEV_MCU_ARMSS0_CPU0},
		Cores: []CoreConfig{
			{
				RprocID: 1, Name: "a72ss0_core0", Kind: "arm64",
				ProcID: 0x20, DevID: J721E_DEV_A72SS0_CORE0,
				Memory: []rproc.Window{{Name: "MSMC_SRAM", PA: 0x70000000, Size: 0x800000}},
			},
			{
				RprocID: 2, Name: "main_r5fss0_core0", Kind: "r5f",
				ProcID: 0x06, DevID: J721E_DEV_R5FSS0_CORE0,
				Windows: []rproc.Window{
					{Name: "atcm", DA: 0x0, PA: 0x05c00000, Size: 0x8000},
					{Name: "btcm", DA: 0x41010000, PA: 0x05c10000, Size: 0x8000},
				},
				Memory: []rproc.Window{
					{Name: "atcm", PA: 0x05c00000, Size: 0x8000},
					{Name: "btcm", PA: 0x05c10000, Size: 0x8000},
				},
			},
		},
		StartTimeoutMs: 1000,
	}
}

// Core returns the layout of remoteproc id.
func (p *Profile) Core(id int) (*CoreConfig, bool) {
	for i := range p.Cores {
		if p.Cores[i].RprocID == id {
			return &p.Cores[i], true
		}
	}
	return nil, false
}

// LoadProfile reads a JSON profile from path. Fields it leaves out keep the
// J721E values.
func LoadProfile(path string) (*Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profile")
	}
	p := J721E()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "failed to parse profile %s", path)
	}
	return p, nil
}

// FindProfile looks name up in profiles.json in the user's or system's
// config folder. "j721e" and "" are always available.
func FindProfile(name string) (*Profile, error) {
	dirs := configdir.New("rproc", "boot")
	if folder := dirs.QueryFolderContainsFile("profiles.json"); folder != nil {
		data, err := folder.ReadFile("profiles.json")
		if err != nil {
			return nil, errors.Wrap(err, "failed to read profiles.json")
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s/profiles.json", folder.Path)
		}
		if r, ok := raw[name]; ok {
			p := J721E()
			p.Name = name
			if err := json.Unmarshal(r, p); err != nil {
				return nil, errors.Wrapf(err, "failed to parse profile %q", name)
			}
			return p, nil
		}
	}
	if name == "" || name == "j721e" {
		return J721E(), nil
	}
	return nil, errors.Errorf("unknown profile %q", name)
}
