package legacy

import "fmt"

// Snapshot paths the coordinator reads. Each view is resolved once per
// start, never re-read afterwards.
const (
	httpViewPath = "legacy.http"
	devViewPath  = "dev"
)

// HTTPView is the legacy implementation's http configuration view.
type HTTPView struct {
	// AutoListen controls whether the adapter binds its own socket. Nil
	// means unset, which defaults to true.
	AutoListen *bool `mapstructure:"auto_listen"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AutoListenEnabled resolves the tri-state AutoListen field.
func (v HTTPView) AutoListenEnabled() bool {
	return v.AutoListen == nil || *v.AutoListen
}

// Addr returns the host:port bind address.
func (v HTTPView) Addr() string {
	return fmt.Sprintf("%s:%d", v.Host, v.Port)
}

// DevView is the development-mode configuration view consumed by the
// supervisor topology.
type DevView struct {
	// BasePath requests a base-path override. Empty means no override and
	// no reverse proxy is built.
	BasePath string `mapstructure:"base_path"`

	// ProxyTargetPort is the port the base-path proxy forwards to.
	ProxyTargetPort int `mapstructure:"proxy_target_port"`
}

// resolveHTTPView reads the legacy.http section from a snapshot.
func resolveHTTPView(snap SettingsView) (HTTPView, error) {
	var view HTTPView
	if err := snap.Decode(httpViewPath, &view); err != nil {
		return HTTPView{}, fmt.Errorf("resolve %s view: %w", httpViewPath, err)
	}
	return view, nil
}

// resolveDevView reads the dev section from a snapshot.
func resolveDevView(snap SettingsView) (DevView, error) {
	var view DevView
	if err := snap.Decode(devViewPath, &view); err != nil {
		return DevView{}, fmt.Errorf("resolve %s view: %w", devViewPath, err)
	}
	return view, nil
}
