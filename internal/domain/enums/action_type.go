package enums

type ActionType string

const (
	ActionLock        ActionType = "lock"
	ActionUnlock      ActionType = "unlock"
	ActionBan         ActionType = "ban"
	ActionUnban       ActionType = "unban"
	ActionDelete      ActionType = "delete"
	ActionEdit        ActionType = "edit"
	ActionPin         ActionType = "pin"
	ActionUnpin       ActionType = "unpin"
	ActionShareGrant  ActionType = "share_permissions"
	ActionRevokeGrant ActionType = "revoke_permissions"
	ActionTimeout     ActionType = "timeout"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionLock, ActionUnlock, ActionBan, ActionUnban, ActionDelete,
		ActionEdit, ActionPin, ActionUnpin, ActionShareGrant, ActionRevokeGrant, ActionTimeout:
		return true
	}
	return false
}
