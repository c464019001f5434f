package main

import (
	"context"

	"github.com/trezcool/usajili/storage/database"
)

var (
	listIndexesFunc = database.ListIndexes // mockable
	dropIndexFunc   = database.DropIndex   // mockable
)

// fixIndex prints the indexes of table. When index is set, it reports whether it exists and drops it if asked to.
func (cli *commandLine) fixIndex(table, index string, drop bool) error {
	ctx := context.Background()
	indexes, err := listIndexesFunc(ctx, cli.db, table)
	if err != nil {
		return err
	}

	found := false
	for _, idx := range indexes {
		cli.printf("%s\n", idx)
		if idx.Name == index {
			found = true
		}
	}
	if index == "" {
		return nil
	}

	if !found {
		cli.printf("index %q not found on %q: nothing to do\n", index, table)
		return nil
	}
	if !drop {
		cli.printf("index %q found on %q: use -drop to drop it\n", index, table)
		return nil
	}
	if err = dropIndexFunc(ctx, cli.db, index); err != nil {
		return err
	}
	cli.printf("index %q dropped\n", index)
	return nil
}
