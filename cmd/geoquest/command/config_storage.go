package command

import (
	"fmt"

	"github.com/pixil98/go-errors"

	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/storage"
)

type StorageConfig struct {
	Players AssetConfig[*game.PlayerRecord] `json:"players"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()
	el.Add(c.Players.Validate("players"))
	return el.Err()
}

func (c *StorageConfig) BuildPlayerStore() (*storage.FileStore[*game.PlayerRecord], error) {
	return c.Players.BuildFileStore()
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
