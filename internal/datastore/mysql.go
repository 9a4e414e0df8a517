package datastore

import (
	"fmt"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// Connection pool defaults
const (
	defaultMaxIdleConns = 10
	defaultMaxOpenConns = 100
)

// MySQLManager handles the MySQL backend.
type MySQLManager struct {
	baseManager
}

// MySQLDSN builds a go-sql-driver DSN with utf8mb4, parsed times and the
// local time zone.
func MySQLDSN(s *conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// NewMySQLManager connects to MySQL and configures the connection pool.
func NewMySQLManager(settings *conf.Settings, log logger.Logger) (*MySQLManager, error) {
	s := &settings.Database.MySQL
	location := fmt.Sprintf("%s/%s", net.JoinHostPort(s.Host, s.Port), s.Database)

	db, err := gorm.Open(mysql.Open(MySQLDSN(s)), newGormConfig(settings, log))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("location", location).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(positiveOr(s.MaxIdleConns, defaultMaxIdleConns))
	sqlDB.SetMaxOpenConns(positiveOr(s.MaxOpenConns, defaultMaxOpenConns))
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to MySQL", logger.String("location", location))

	return &MySQLManager{baseManager{
		db:       db,
		dialect:  conf.DatabaseMySQL,
		location: location,
		seed:     settings.Database.SeedSamples,
		log:      log,
	}}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
