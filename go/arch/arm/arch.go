package arm

import (
	cs "github.com/lunixbochs/capstr"
	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/rproc/go/cpu"
	"github.com/lunixbochs/rproc/go/cpu/unicorn"
	"github.com/lunixbochs/rproc/go/models"
)

// Arch is the 32-bit ARM state of the Cortex-R5F cores.
var Arch = &models.Arch{
	Name: "arm",
	Bits: 32,

	Cpu: &unicorn.Builder{Arch: uc.ARCH_ARM, Mode: uc.MODE_ARM},
	Dis: &cpu.Capstr{Arch: cs.ARCH_ARM, Mode: cs.MODE_ARM},
	Asm: &cpu.Keystone{Arch: ks.ARCH_ARM, Mode: ks.MODE_ARM},

	PC: uc.ARM_REG_PC,
	SP: uc.ARM_REG_SP,
	Regs: map[string]int{
		"r0":  uc.ARM_REG_R0,
		"r1":  uc.ARM_REG_R1,
		"r2":  uc.ARM_REG_R2,
		"r3":  uc.ARM_REG_R3,
		"r4":  uc.ARM_REG_R4,
		"r5":  uc.ARM_REG_R5,
		"r6":  uc.ARM_REG_R6,
		"r7":  uc.ARM_REG_R7,
		"r8":  uc.ARM_REG_R8,
		"r9":  uc.ARM_REG_R9,
		"r10": uc.ARM_REG_R10,
		"r11": uc.ARM_REG_R11,
		"r12": uc.ARM_REG_R12,
		"sp":  uc.ARM_REG_SP,
		"lr":  uc.ARM_REG_LR,
		"pc":  uc.ARM_REG_PC,
	},
}

// Thumb is the same core running Thumb-2 code.
var Thumb = &models.Arch{
	Name: "thumb",
	Bits: 32,

	Cpu: &unicorn.Builder{Arch: uc.ARCH_ARM, Mode: uc.MODE_THUMB},
	Dis: &cpu.Capstr{Arch: cs.ARCH_ARM, Mode: cs.MODE_THUMB},
	Asm: &cpu.Keystone{Arch: ks.ARCH_ARM, Mode: ks.MODE_THUMB},

	PC:   uc.ARM_REG_PC,
	SP:   uc.ARM_REG_SP,
	Regs: Arch.Regs,
}
