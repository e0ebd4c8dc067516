package main

import (
	"context"

	"rowquery/internal/config"
	"rowquery/internal/schema"
	"rowquery/internal/storage"
)

func schemaPairs() schema.Shape {
	return schema.Shape{Name: "num", Fields: []schema.Field{
		{Name: "n", Type: "bigint"},
		{Name: "square", Type: "bigint"},
	}}
}

func seedNums(ctx context.Context, cfg config.Config) error {
	repo, err := storage.New(ctx, storage.FromConfig(cfg.Storage))
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Exec(ctx, `CREATE TABLE nums (n INTEGER)`); err != nil {
		return err
	}
	return repo.Exec(ctx, `INSERT INTO nums VALUES (1), (2)`)
}
