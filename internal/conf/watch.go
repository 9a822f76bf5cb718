package conf

import (
	"log"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads settings whenever the config file changes on disk and hands the
// new settings to onChange. Invalid edits are logged and the previous settings stay active.
func Watch(onChange func(*Settings)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		settings := &Settings{}
		if err := viper.Unmarshal(settings); err != nil {
			log.Printf("config reload failed for %s: %v", e.Name, err)
			return
		}
		if err := ValidateSettings(settings); err != nil {
			log.Printf("config reload rejected for %s: %v", e.Name, err)
			return
		}

		settingsMutex.Lock()
		settingsInstance = settings
		settingsMutex.Unlock()

		if onChange != nil {
			onChange(settings)
		}
	})
	viper.WatchConfig()
}
