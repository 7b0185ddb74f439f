package library

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCatalog(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)

	csvData := `Title,Author,Genre,ISBN,Copies,image_url
Dune,Frank Herbert,Science Fiction,9780441172719,3,
"Pride and Prejudice",Jane Austen,Romance,9780141439518,,https://example.com/pp.jpg
,Nobody,,,1,
Emma,Jane Austen,Romance,,many,
`
	res, err := mgr.ImportCatalog(ctx, librarian, strings.NewReader(csvData))
	require.NoError(t, err)

	require.Len(t, res.Imported, 2)
	assert.Equal(t, 3, res.Imported[0].TotalCopies)
	assert.Equal(t, 1, res.Imported[1].TotalCopies)
	assert.Equal(t, "https://example.com/pp.jpg", res.Imported[1].ImageURL)

	require.Len(t, res.Failed, 2)
	assert.Equal(t, 4, res.Failed[0].Line)
	assert.ErrorIs(t, res.Failed[1].Err, ErrValidation)

	books, err := mgr.GetAllBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestImportCatalog_RequiresColumnsAndLibrarian(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)
	member := session(t, mgr, "mem", Member)

	_, err := mgr.ImportCatalog(ctx, librarian, strings.NewReader("title,genre\nDune,SF\n"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mgr.ImportCatalog(ctx, member, strings.NewReader("title,author\nDune,Herbert\n"))
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := mgr.ImportCatalog(ctx, librarian, strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Imported)
}
