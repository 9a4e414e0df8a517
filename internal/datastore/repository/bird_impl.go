package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

const (
	componentDatastore = "datastore"

	mysqlDuplicateEntry   = 1062
	postgresUniqueViolate = "23505"
)

// likeEscaper escapes LIKE wildcards with '!'. Backslash is avoided because
// MySQL treats it as a string literal escape.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// searchCondition matches one term against every name column. SQLite's
// LOWER() and LIKE fold ASCII only, so each column is also compared with the
// upper-cased term: LIKE folds the ASCII letters and non-ASCII capitals
// such as "É" then compare equal.
const searchCondition = "(LOWER(genus) LIKE @lower ESCAPE '!' OR genus LIKE @upper ESCAPE '!'" +
	" OR LOWER(species) LIKE @lower ESCAPE '!' OR species LIKE @upper ESCAPE '!'" +
	" OR LOWER(subspecies) LIKE @lower ESCAPE '!' OR subspecies LIKE @upper ESCAPE '!'" +
	" OR LOWER(english_name) LIKE @lower ESCAPE '!' OR english_name LIKE @upper ESCAPE '!')"

// birdRepository implements RecordRepository.
type birdRepository struct {
	db      *gorm.DB
	metrics metrics.Recorder
}

// NewRecordRepository creates a new RecordRepository. A nil recorder
// disables metrics.
func NewRecordRepository(db *gorm.DB, recorder metrics.Recorder) RecordRepository {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &birdRepository{
		db:      db,
		metrics: recorder,
	}
}

// Find returns records matching every term of query.
func (r *birdRepository) Find(ctx context.Context, query string, filters *Filters) (birds []entities.Bird, err error) {
	defer r.observe(metrics.OpFind, time.Now(), &err)

	err = r.db.WithContext(ctx).
		Scopes(searchScope(query), filterScope(filters), pageScope(filters)).
		Order(filters.orderClause()).
		Find(&birds).Error
	if err != nil {
		return nil, dbError(err, metrics.OpFind)
	}
	return birds, nil
}

// List returns records matching filters.
func (r *birdRepository) List(ctx context.Context, filters *Filters) (birds []entities.Bird, err error) {
	defer r.observe(metrics.OpList, time.Now(), &err)

	err = r.db.WithContext(ctx).
		Scopes(filterScope(filters), pageScope(filters)).
		Order(filters.orderClause()).
		Find(&birds).Error
	if err != nil {
		return nil, dbError(err, metrics.OpList)
	}
	return birds, nil
}

// Count returns the number of records matching query and filters.
func (r *birdRepository) Count(ctx context.Context, query string, filters *Filters) (count int64, err error) {
	defer r.observe(metrics.OpCount, time.Now(), &err)

	err = r.db.WithContext(ctx).Model(&entities.Bird{}).
		Scopes(searchScope(query), filterScope(filters)).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, metrics.OpCount)
	}
	return count, nil
}

// Get retrieves a bird by ID.
func (r *birdRepository) Get(ctx context.Context, id uint) (bird *entities.Bird, err error) {
	defer r.observe(metrics.OpGet, time.Now(), &err)

	var b entities.Bird
	err = r.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, dbError(err, metrics.OpGet)
	}
	return &b, nil
}

// Create validates and inserts a bird.
func (r *birdRepository) Create(ctx context.Context, bird *entities.Bird) (err error) {
	defer r.observe(metrics.OpCreate, time.Now(), &err)

	if bird == nil {
		return invalidInput("bird is nil")
	}
	bird.Normalize()
	if err = bird.Validate(); err != nil {
		return err
	}

	bird.ID = 0
	if err = r.db.WithContext(ctx).Create(bird).Error; err != nil {
		return dbError(err, metrics.OpCreate)
	}
	return nil
}

// Update validates and saves every column of bird.
func (r *birdRepository) Update(ctx context.Context, bird *entities.Bird) (err error) {
	defer r.observe(metrics.OpUpdate, time.Now(), &err)

	if bird == nil {
		return invalidInput("bird is nil")
	}
	if bird.ID == 0 {
		return notFound(0)
	}
	bird.Normalize()
	if err = bird.Validate(); err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.Bird
		if err := tx.First(&existing, bird.ID).Error; err != nil {
			return err
		}
		bird.CreatedAt = existing.CreatedAt
		return tx.Save(bird).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(bird.ID)
	}
	if err != nil {
		return dbError(err, metrics.OpUpdate)
	}
	return nil
}

// Delete removes a bird by ID.
func (r *birdRepository) Delete(ctx context.Context, id uint) (err error) {
	defer r.observe(metrics.OpDelete, time.Now(), &err)

	result := r.db.WithContext(ctx).Delete(&entities.Bird{}, id)
	if result.Error != nil {
		return dbError(result.Error, metrics.OpDelete)
	}
	if result.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// DistinctValues returns the sorted distinct non-empty values of field.
func (r *birdRepository) DistinctValues(ctx context.Context, field FilterField) (values []string, err error) {
	defer r.observe(metrics.OpDistinct, time.Now(), &err)

	if !field.Valid() {
		return nil, invalidInput(fmt.Sprintf("unknown filter field %q", field))
	}

	column := string(field)
	err = r.db.WithContext(ctx).Model(&entities.Bird{}).
		Where(column+" <> ''").
		Distinct(column).
		Order(column+" ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, dbError(err, metrics.OpDistinct)
	}
	return values, nil
}

// Upsert creates bird or refreshes the English name and family of the
// existing record with the same genus, species and subspecies.
func (r *birdRepository) Upsert(ctx context.Context, bird *entities.Bird) (created bool, err error) {
	defer r.observe(metrics.OpUpsert, time.Now(), &err)

	if bird == nil {
		return false, invalidInput("bird is nil")
	}
	bird.Normalize()
	if err = bird.Validate(); err != nil {
		return false, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.Bird
		q := tx.Where("genus = ? AND species = ?", bird.Genus, bird.Species)
		if bird.Subspecies == nil {
			q = q.Where("subspecies IS NULL")
		} else {
			q = q.Where("subspecies = ?", *bird.Subspecies)
		}

		findErr := q.Order("id ASC").First(&existing).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			bird.ID = 0
			created = true
			return tx.Create(bird).Error
		}
		if findErr != nil {
			return findErr
		}

		bird.ID = existing.ID
		bird.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Updates(map[string]any{
			"english_name": bird.EnglishName,
			"family":       bird.Family,
		}).Error
	})
	if err != nil {
		return false, dbError(err, metrics.OpUpsert)
	}
	return created, nil
}

// observe records the outcome of an operation. errp is read when the
// deferred call runs so the named return value is seen.
func (r *birdRepository) observe(op string, start time.Time, errp *error) {
	status := metrics.StatusSuccess
	switch {
	case *errp == nil:
	case errors.Is(*errp, ErrBirdNotFound):
		status = metrics.StatusNotFound
	default:
		status = metrics.StatusError
	}
	r.metrics.RecordOperation(op, status)
	r.metrics.RecordDuration(op, time.Since(start))
}

func searchScope(query string) func(*gorm.DB) *gorm.DB {
	terms := strings.Fields(query)
	return func(db *gorm.DB) *gorm.DB {
		for _, term := range terms {
			db = db.Where(searchCondition, sql.Named("lower", likePattern(strings.ToLower(term))),
				sql.Named("upper", likePattern(strings.ToUpper(term))))
		}
		return db
	}
}

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func filterScope(f *Filters) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f == nil {
			return db
		}
		if f.Genus != "" {
			db = db.Where("genus = ?", f.Genus)
		}
		if f.Species != "" {
			db = db.Where("species = ?", f.Species)
		}
		return db
	}
}

func pageScope(f *Filters) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f == nil {
			return db
		}
		if f.Limit > 0 {
			db = db.Limit(f.Limit)
		}
		if f.Offset > 0 {
			db = db.Offset(f.Offset)
		}
		return db
	}
}

func notFound(id uint) error {
	return errors.New(ErrBirdNotFound).
		Component(componentDatastore).
		Category(errors.CategoryNotFound).
		Context("id", id).
		Build()
}

func invalidInput(msg string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidInput, msg)).
		Component(componentDatastore).
		Category(errors.CategoryValidation).
		Build()
}

// dbError wraps a GORM or driver error. Unique violations become conflicts.
func dbError(err error, op string) error {
	if isDuplicateKey(err) {
		return errors.New(fmt.Errorf("%w: %w", ErrDuplicateKey, err)).
			Component(componentDatastore).
			Category(errors.CategoryConflict).
			Context("operation", op).
			Build()
	}
	return errors.New(err).
		Component(componentDatastore).
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolate {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
