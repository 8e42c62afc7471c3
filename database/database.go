package database

import (
	"gorm.io/gorm"
)

type Database struct {
	db            *gorm.DB
	schema        *Schema
	postRepo      *PostRepo
	versionRepo   *VersionRepo
	workspaceRepo *WorkspaceRepo
	catalogRepo   *CatalogRepo
}

// New detects the schema capabilities and initializes every repository over
// the shared GORM database instance.
func New(db *gorm.DB) (Database, error) {
	schema, err := newSchema(db)
	if err != nil {
		return Database{}, err
	}
	return Database{
		db:            db,
		schema:        schema,
		postRepo:      NewPostRepo(db, schema),
		versionRepo:   NewVersionRepo(db),
		workspaceRepo: NewWorkspaceRepo(db),
		catalogRepo:   NewCatalogRepo(db, schema),
	}, nil
}

// Accessor methods for each repository

func (d Database) PostRepo() *PostRepo {
	return d.postRepo
}

func (d Database) VersionRepo() *VersionRepo {
	return d.versionRepo
}

func (d Database) WorkspaceRepo() *WorkspaceRepo {
	return d.workspaceRepo
}

func (d Database) CatalogRepo() *CatalogRepo {
	return d.catalogRepo
}

func (d Database) Schema() *Schema {
	return d.schema
}

// Ping checks that the underlying connection is alive.
func (d Database) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
