package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalogue = []Item{
	{Code: "1001", Description: "Amoxicilina 250mg", Price: 45.9, Stock: 0},
	{Code: "1002", Description: "Amoxicilina + Clavulanato 500mg", Price: 89.5, Stock: 4},
	{Code: "2001", Description: "Bravecto Cães 10-20kg", Price: 219, Stock: 12},
	{Description: "Dipirona Gotas", Price: 12.3, Stock: 30},
}

func TestItemStatus(t *testing.T) {
	assert.Equal(t, StatusOutOfStock, Item{Stock: 0}.Status())
	assert.Equal(t, StatusAvailable, Item{Stock: 3}.Status())
}

func TestItemJSONCarriesStatus(t *testing.T) {
	raw, err := json.Marshal(catalogue[0])
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "out_of_stock", got["status"])
	assert.Equal(t, "Amoxicilina 250mg", got["description"])
	assert.Equal(t, 45.9, got["price"])
}

func TestServiceCodeMatchWins(t *testing.T) {
	svc := NewService(NewMemoryRepository(catalogue))
	got, err := svc.FindMedication(context.Background(), "2001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bravecto Cães 10-20kg", got[0].Description)
}

func TestServiceTextSearch(t *testing.T) {
	svc := NewService(NewMemoryRepository(catalogue))
	got, err := svc.FindMedication(context.Background(), "amoxicilina")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Amoxicilina 250mg", got[0].Description)

	got, err = svc.FindMedication(context.Background(), "caes bravecto")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "2001", got[0].Code)

	got, err = svc.FindMedication(context.Background(), "ivermectina")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServiceEmptyTerm(t *testing.T) {
	svc := NewService(NewMemoryRepository(catalogue))
	_, err := svc.FindMedication(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

type failingRepo struct{ MemoryRepository }

func (*failingRepo) FindByCode(context.Context, string) (Item, error) {
	return Item{}, errors.New("connection reset")
}

func TestServicePropagatesRepositoryFailure(t *testing.T) {
	svc := NewService(&failingRepo{})
	_, err := svc.FindMedication(context.Background(), "amoxicilina")
	assert.EqualError(t, err, "connection reset")
}

func TestMemorySearchLimit(t *testing.T) {
	repo := NewMemoryRepository(catalogue)
	got, err := repo.SearchByText(context.Background(), "amoxicilina", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestParseCSV(t *testing.T) {
	data := "id,descricao,preco,estoque\n" +
		"1001,Amoxicilina 250mg,\"45,90\",0\n" +
		"2001,Bravecto Cães,219.00,12\n" +
		",,,\n" +
		"3001,Dipirona,,\n"
	items, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Item{Code: "1001", Description: "Amoxicilina 250mg", Price: 45.9, Stock: 0}, items[0])
	assert.Equal(t, 219.0, items[1].Price)
	assert.Equal(t, Item{Code: "3001", Description: "Dipirona"}, items[2])
}

func TestParseCSVEnglishHeader(t *testing.T) {
	items, err := ParseCSV(strings.NewReader("code,description,price,stock\nA1,Simparic,150.5,3\n"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Stock)
}

func TestParseCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing description": "id,preco\n1,2\n",
		"bad price":           "descricao,preco\nX,abc\n",
		"negative stock":      "descricao,estoque\nX,-1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}

func TestCSVWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meds.csv")
	require.NoError(t, os.WriteFile(path, []byte("descricao,preco,estoque\nAmoxicilina,10,1\n"), 0o600))

	repo := NewMemoryRepository(nil)
	reloaded := make(chan int, 4)
	w, err := NewCSVWatcher(path, repo, nil, func(count int, err error) {
		if err == nil {
			reloaded <- count
		}
	})
	require.NoError(t, err)
	defer w.Close()

	w.Reload(context.Background())
	require.Equal(t, 1, <-reloaded)
	require.Equal(t, 1, repo.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("descricao,preco,estoque\nAmoxicilina,10,1\nBravecto,200,2\n"), 0o600))

	select {
	case n := <-reloaded:
		assert.Equal(t, 2, n)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the catalogue")
	}
	assert.Equal(t, 2, repo.Len())
}

func TestCSVWatcherKeepsCatalogueOnBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meds.csv")
	require.NoError(t, os.WriteFile(path, []byte("descricao,preco\nX,abc\n"), 0o600))

	repo := NewMemoryRepository(catalogue)
	var gotErr error
	w, err := NewCSVWatcher(path, repo, nil, func(_ int, err error) { gotErr = err })
	require.NoError(t, err)
	defer w.Close()

	w.Reload(context.Background())
	assert.Error(t, gotErr)
	assert.Equal(t, len(catalogue), repo.Len())
}

func TestOpenCSVBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meds.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,descricao,preco,estoque\n7,Bravecto,200,2\n"), 0o600))

	b, err := Open(context.Background(), Config{CSVPath: path}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "csv", b.Mode)

	got, err := b.Finder.FindMedication(context.Background(), "bravecto")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Stock)
}

func TestOpenWithoutSourceIsEmptyMemory(t *testing.T) {
	b, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "memory", b.Mode)
	require.NotNil(t, b.Service)
}

func TestOpenRemoteBackend(t *testing.T) {
	b, err := Open(context.Background(), Config{RemoteURL: "http://inventory.test/medications"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http", b.Mode)
	assert.Nil(t, b.Service)
	assert.IsType(t, &HTTPClient{}, b.Finder)
}
