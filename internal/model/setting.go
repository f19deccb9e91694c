package model

// Setting keys used by the agent.
const (
	SettingServerURL = "server_url"
)

// Setting is a per-device key/value pair, e.g. the persisted sync server URL.
type Setting struct {
	Key   string `gorm:"primarykey" json:"key"`
	Value string `json:"value" gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }
