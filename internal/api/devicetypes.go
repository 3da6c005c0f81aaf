package api

// DeviceType describes one entry in the device type taxonomy.
type DeviceType struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DeviceTypes is the full device type taxonomy, grouped by category.
// The default for unconfigured screens is info-display.
var DeviceTypes = map[string][]DeviceType{
	"Access & Security": {
		{ID: "door-panel", Label: "Door Panel"},
		{ID: "airlock-panel", Label: "Airlock Panel"},
		{ID: "alert-beacon", Label: "Alert Beacon"},
	},
	"Navigation & Command": {
		{ID: "navigation-panel", Label: "Navigation Panel"},
		{ID: "tactical-panel", Label: "Tactical Panel"},
		{ID: "command-panel", Label: "Command Panel"},
		{ID: "comms-panel", Label: "Comms Panel"},
		{ID: "holotable", Label: "Holotable"},
	},
	"Engineering & Systems": {
		{ID: "engineering-panel", Label: "Engineering Panel"},
		{ID: "diagnostic-panel", Label: "Diagnostic Panel"},
		{ID: "gauge-display", Label: "Gauge Display"},
		{ID: "life-support-panel", Label: "Life Support Panel"},
		{ID: "systems-panel", Label: "Systems Panel"},
	},
	"Viewport & Atmospheric": {
		{ID: "viewport", Label: "Viewport"},
		{ID: "ambient-display", Label: "Ambient Display"},
		{ID: "corridor-display", Label: "Corridor Display"},
	},
	"Entertainment & Media": {
		{ID: "entertainment-display", Label: "Entertainment Display"},
		{ID: "bar-display", Label: "Bar Display"},
		{ID: "table-display", Label: "Table Display"},
	},
	"Display & Collection": {
		{ID: "collectible-display", Label: "Collectible Display"},
		{ID: "label-display", Label: "Label Display"},
		{ID: "gallery-display", Label: "Gallery Display"},
	},
	"Utility & Personal": {
		{ID: "info-display", Label: "Info Display"},
		{ID: "utility-display", Label: "Utility Display"},
		{ID: "personal-panel", Label: "Personal Panel"},
		{ID: "workstation-display", Label: "Workstation Display"},
		{ID: "medical-panel", Label: "Medical Panel"},
		{ID: "medical-display", Label: "Medical Display"},
	},
	"Specialized": {
		{ID: "hangar-panel", Label: "Hangar Panel"},
		{ID: "cargo-display", Label: "Cargo Display"},
		{ID: "vehicle-display", Label: "Vehicle Display"},
	},
}
