package model

// Handle identifies a live window granted by the capability manager.
// Handle 0 is never issued.
type Handle uint64

// WindowOptions pins the chrome of the single exam window. Host-runtime
// defaults are an implicit dispatch surface; every flag is set explicitly
// by the engine instead.
type WindowOptions struct {
	Title       string `yaml:"title" json:"title"`
	Fullscreen  bool   `yaml:"fullscreen" json:"fullscreen"`
	AlwaysOnTop bool   `yaml:"always_on_top" json:"always_on_top"`
	SkipTaskbar bool   `yaml:"skip_taskbar" json:"skip_taskbar"`
	// Closable stays false for the lifetime of the session; the window
	// may only disappear through the controller's terminal path.
	Closable bool `yaml:"closable" json:"closable"`
}
