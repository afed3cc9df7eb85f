package shm

// Role identifies which side of the transport a process plays.
type Role uint32

const (
	RoleController Role = 1 << 0
	RoleHardware   Role = 1 << 1

	// RoleAny disables writer checks.
	RoleAny = RoleController | RoleHardware
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RoleHardware:
		return "hardware"
	case RoleAny:
		return "any"
	default:
		return "none"
	}
}

// ParseRole maps "controller", "hardware" or "any" to a Role.
func ParseRole(name string) (Role, bool) {
	switch name {
	case "controller":
		return RoleController, true
	case "hardware":
		return RoleHardware, true
	case "", "any":
		return RoleAny, true
	default:
		return 0, false
	}
}

// BlockPolicy declares who writes a block and who reads it. There is exactly
// one designated writer per block; nothing arbitrates between processes, so
// running two writers for the same block is undefined behaviour.
type BlockPolicy struct {
	Block      JointType
	WriterMask Role
	ReaderMask Role
}

// PolicyFor returns the canonical policy for a block.
func PolicyFor(block JointType) BlockPolicy {
	switch block {
	case PositionCommand, PositionGains, VelocityCommand, VelocityGains, TorqueCommand, TorqueGains:
		return BlockPolicy{
			Block:      block,
			WriterMask: RoleController,
			ReaderMask: RoleController | RoleHardware,
		}
	case MotorTemperature, MotorCurrent, ForceSensor, ImuSensor:
		return BlockPolicy{
			Block:      block,
			WriterMask: RoleHardware,
			ReaderMask: RoleController | RoleHardware,
		}
	default:
		return BlockPolicy{Block: block}
	}
}

// CanWrite reports whether role may write the block. RoleAny always may.
func (p BlockPolicy) CanWrite(role Role) bool {
	return role == RoleAny || p.WriterMask&role != 0
}
