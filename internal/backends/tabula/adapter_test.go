package tabula

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-inspector/internal/domain"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	name   string
	args   []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

const twoTables = `[
 {"extraction_method":"lattice","page_number":1,"top":10,"left":10,"data":[
   [{"top":1,"left":1,"text":"Name"},{"text":"Name"},{"text":""}],
   [{"text":"Ada"},{"text":"Lovelace"},{"text":"1815"}]
 ]},
 {"extraction_method":"lattice","page_number":1,"data":[[{"text":"Only"}],[{"text":"x"},{"text":"y"}]]}
]`

func TestArgs(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.Pages = []int{2}
	opts.Password = "pw"

	assert.Equal(t, []string{"-jar", "t.jar", "-f", "JSON", "-p", "2", "-l", "-s", "pw", "in.pdf"},
		Args("t.jar", domain.ModeLattice, "in.pdf", opts))
	assert.Equal(t, []string{"-jar", "t.jar", "-f", "JSON", "-p", "all", "-t", "in.pdf"},
		Args("t.jar", domain.ModeStream, "in.pdf", domain.DefaultOptions()))
}

func TestExtract(t *testing.T) {
	fr := &fakeRunner{stdout: twoTables}
	res, err := New("", "/opt/tabula.jar", fr, nil).Extract(context.Background(), "in.pdf", domain.ModeLattice, domain.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "java", fr.name)
	assert.Equal(t, "/opt/tabula.jar", fr.args[1])

	require.Len(t, res.Tables, 2)
	assert.Equal(t, []string{"Name", "Name_1", "Column_3"}, res.Tables[0].Header)
	assert.Equal(t, [][]string{{"Ada", "Lovelace", "1815"}}, res.Tables[0].Rows)
	assert.Equal(t, []string{"Only", "Column_2"}, res.Tables[1].Header)
	assert.Equal(t, 2, res.Tables[1].Metrics.Order)
}

func TestParse_MissingPageNumber(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.Pages = []int{4}

	got, err := parse([]byte(`[{"data":[[{"text":"h"}],[{"text":"v"}]]}]`), opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Page)

	got, err = parse(nil, opts)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parse([]byte("not json"), opts)
	assert.Error(t, err)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		stderr string
		want   domain.ErrorKind
	}{
		{"Error: Unable to access jarfile tabula.jar", domain.KindUnavailableDependency},
		{"Exception in thread \"main\" java.lang.ArithmeticException: / by zero", domain.KindDegenerateGeometryFault},
		{"org.apache.pdfbox.pdmodel.encryption.InvalidPasswordException: Cannot decrypt PDF, the password is incorrect", domain.KindPasswordProtected},
	}
	for _, tt := range tests {
		fr := &fakeRunner{stderr: tt.stderr, err: errors.New("exit status 1")}
		_, err := New("", "", fr, nil).Extract(context.Background(), "in.pdf", domain.ModeLattice, domain.DefaultOptions())
		assert.True(t, domain.IsKind(err, tt.want), tt.stderr)
	}

	fr := &fakeRunner{stdout: "{broken"}
	_, err := New("", "", fr, nil).Extract(context.Background(), "in.pdf", domain.ModeStream, domain.DefaultOptions())
	assert.True(t, domain.IsKind(err, domain.KindBackendInternal))
}
