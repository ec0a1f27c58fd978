package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

type sqlDialect struct {
	createTable string
	selectOne   string
	upsert      string
	deleteOne   string
	selectKeys  string
}

var sqlDialects = map[string]sqlDialect{
	"postgres": {
		createTable: `create table if not exists kv_store (
			store_key varchar(255) primary key,
			store_value text not null
		)`,
		selectOne: `select store_value from kv_store where store_key = $1`,
		upsert: `insert into kv_store (store_key, store_value) values ($1, $2)
			on conflict (store_key) do update set store_value = excluded.store_value`,
		deleteOne:  `delete from kv_store where store_key = $1`,
		selectKeys: `select store_key from kv_store order by store_key`,
	},
	"mysql": {
		createTable: `create table if not exists kv_store (
			store_key varchar(255) primary key,
			store_value longtext not null
		)`,
		selectOne: `select store_value from kv_store where store_key = ?`,
		upsert: `insert into kv_store (store_key, store_value) values (?, ?)
			on duplicate key update store_value = values(store_value)`,
		deleteOne:  `delete from kv_store where store_key = ?`,
		selectKeys: `select store_key from kv_store order by store_key`,
	},
}

// SQLMedium stores keys as rows of a single kv_store table.
type SQLMedium struct {
	db      *sql.DB
	dialect sqlDialect
}

func OpenSQLMedium(driver, dsn string) (*SQLMedium, error) {
	dialect, ok := sqlDialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLMedium{db: db, dialect: dialect}, nil
}

func (m *SQLMedium) Init() error {
	log.Println("Initializing kv_store table...")
	_, err := m.db.Exec(m.dialect.createTable)
	return err
}

func (m *SQLMedium) Close() error { return m.db.Close() }

func (m *SQLMedium) Get(key string) (string, bool, error) {
	var value string
	err := m.db.QueryRow(m.dialect.selectOne, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (m *SQLMedium) Set(key, value string) error {
	_, err := m.db.Exec(m.dialect.upsert, key, value)
	return err
}

func (m *SQLMedium) Remove(key string) error {
	_, err := m.db.Exec(m.dialect.deleteOne, key)
	return err
}

func (m *SQLMedium) Keys() ([]string, error) {
	rows, err := m.db.Query(m.dialect.selectKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
