package tele_config

type Role string

const (
	RoleInvalid  Role = ""
	RoleDevice   Role = "device"
	RoleOperator Role = "operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDevice, RoleOperator:
		return true
	}
	return false
}
