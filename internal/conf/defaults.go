// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "hellobirdie")
	viper.SetDefault("main.env", EnvLocal)

	viper.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	viper.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)

	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.admin.username", "admin")
	viper.SetDefault("webserver.admin.passwordhash", "")
	viper.SetDefault("webserver.session.maxage", 12*time.Hour)
	viper.SetDefault("webserver.session.secure", false)

	viper.SetDefault("database.type", "")
	viper.SetDefault("database.seedsamples", false)
	viper.SetDefault("database.slowquerythreshold", 200*time.Millisecond)
	viper.SetDefault("database.sqlite.path", "hellobirdie.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "hellobirdie")
	viper.SetDefault("database.mysql.maxopenconns", 10)
	viper.SetDefault("database.mysql.maxidleconns", 5)
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", "5432")
	viper.SetDefault("database.postgres.user", "postgres")
	viper.SetDefault("database.postgres.password", "postgres")
	viper.SetDefault("database.postgres.database", "hellobirdie")
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", 5*time.Minute)

	viper.SetDefault("ebird.baseurl", "https://api.ebird.org/v2")
	viper.SetDefault("ebird.locale", "en")
	viper.SetDefault("ebird.timeout", 30*time.Second)
	viper.SetDefault("ebird.cachettl", 24*time.Hour)
	viper.SetDefault("ebird.ratelimit", 2.0)

	viper.SetDefault("backup.target", BackupTargetLocal)
	viper.SetDefault("backup.local.path", "backups")
	viper.SetDefault("backup.s3.region", "us-east-1")
	viper.SetDefault("backup.s3.prefix", "hellobirdie/")
	viper.SetDefault("backup.s3.pathstyle", false)

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("sentry.enabled", false)
}
