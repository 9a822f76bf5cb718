// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultPlaceholderURL is shown when neither a stored image nor an external URL is available.
const DefaultPlaceholderURL = "https://cf.geekdo-images.com/zxVVmggfpHJpmnJY9j-k1w__imagepage/img/6AJ0hDAeJlICZkzaeIhZA_fSiAI=/fit-in/900x600/filters:no_upscale():strip_icc()/pic1657689.jpg"

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("log.enabled", true)
	viper.SetDefault("log.path", "logs/bggsync.log")
	viper.SetDefault("log.rotation", RotationSize)
	viper.SetDefault("log.maxsize", 10*1024*1024)

	viper.SetDefault("catalog.baseurl", "https://boardgamegeek.com/xmlapi2")
	viper.SetDefault("catalog.timeout", 10*time.Second)
	viper.SetDefault("catalog.ratelimitms", 1000)
	viper.SetDefault("catalog.cachettl", 10*time.Minute)
	viper.SetDefault("catalog.maxretries", 3)
	viper.SetDefault("catalog.secondarysearchdelay", time.Second)
	viper.SetDefault("catalog.useragent", "bgg-flashcards/1.0")

	viper.SetDefault("image.downloadtimeout", 30*time.Second)
	viper.SetDefault("image.maxsize", 2*1024*1024)
	viper.SetDefault("image.maxdimension", 300)
	viper.SetDefault("image.placeholderid", -1)
	viper.SetDefault("image.placeholderurl", DefaultPlaceholderURL)

	viper.SetDefault("database.dsn", "host=localhost user=postgres dbname=bgg sslmode=disable")
	viper.SetDefault("database.maxopenconns", 10)
	viper.SetDefault("database.maxidleconns", 2)
	viper.SetDefault("database.connmaxlifetime", 30*time.Minute)

	viper.SetDefault("sync.interval", 3*time.Second)
	viper.SetDefault("sync.limit", 50)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "localhost:9090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
