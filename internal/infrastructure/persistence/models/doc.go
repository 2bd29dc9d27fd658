// Package models contains GORM persistence models that map to database tables.
// They are kept apart from domain entities so the domain stays free of ORM tags;
// repositories convert with ToDomain / FromDomain.
//
// JSON-valued columns (tags, criteria) are stored as strings so the same models
// work on PostgreSQL jsonb and on SQLite in tests.
package models
