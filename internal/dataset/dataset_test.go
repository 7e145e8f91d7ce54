package dataset

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const tractsCSV = `GEOID,NAME,median_income,imd_score
06001400100,Tract 4001,"120,500",12.5
06001400200,Tract 4002,98000,NA
06001400300,Tract 4003,,31.25
06001400400,Tract 4004,$45000,-
`

func TestReadCSV_Columns(t *testing.T) {
	cols, err := ReadCSV(context.Background(), strings.NewReader(tractsCSV), Options{
		Columns:   []string{"median_income", "IMD_SCORE"},
		KeyColumn: "geoid",
	})
	require.NoError(t, err)
	require.Len(t, cols, 2)

	income := cols[0]
	assert.Equal(t, "median_income", income.Name)
	assert.Equal(t, 1, income.Missing)
	require.Len(t, income.Values, 4)
	assert.Equal(t, 120500.0, income.Values[0])
	assert.Equal(t, 98000.0, income.Values[1])
	assert.True(t, math.IsNaN(income.Values[2]))
	assert.Equal(t, 45000.0, income.Values[3])
	assert.Equal(t, []string{"06001400100", "06001400200", "06001400300", "06001400400"}, income.Keys)

	imd := cols[1]
	assert.Equal(t, 2, imd.Missing)
	assert.Equal(t, 12.5, imd.Values[0])
	assert.True(t, math.IsNaN(imd.Values[1]))
	assert.Equal(t, 31.25, imd.Values[2])
	assert.True(t, math.IsNaN(imd.Values[3]))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
		want  string
	}{
		{name: "unknown column", input: "a,b\n1,2\n", opts: Options{Columns: []string{"c"}}, want: `column "c" not found`},
		{name: "unknown key", input: "a,b\n1,2\n", opts: Options{Columns: []string{"a"}, KeyColumn: "id"}, want: `key column "id" not found`},
		{name: "bad number", input: "a\n1\nabc\n", opts: Options{Columns: []string{"a"}}, want: `row 2 column "a"`},
		{name: "empty input", input: "", opts: Options{Columns: []string{"a"}}, want: "no header row"},
		{name: "no columns", input: "a\n1\n", opts: Options{}, want: "no columns requested"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(context.Background(), strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadCSV_ShortRowsAreMissing(t *testing.T) {
	cols, err := ReadCSV(context.Background(), strings.NewReader("id,a,b\n1,5\n2,6,7\n"), Options{Columns: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, cols[0].Missing)
	assert.True(t, math.IsNaN(cols[0].Values[0]))
	assert.Equal(t, 7.0, cols[0].Values[1])
}

func TestReadCSV_Latin1(t *testing.T) {
	// "Peñalolén" encoded as ISO-8859-1 in the key column.
	input := []byte("name,pop\nPe\xf1alol\xe9n,250000\n")
	cols, err := ReadCSV(context.Background(), bytes.NewReader(input), Options{
		Columns:   []string{"pop"},
		KeyColumn: "name",
		Charset:   "latin1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Peñalolén"}, cols[0].Keys)

	_, err = ReadCSV(context.Background(), bytes.NewReader(input), Options{Columns: []string{"pop"}, Charset: "klingon"})
	assert.Error(t, err)
}

func TestReadCSV_ContextCancelled(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("a\n")
	for range 10000 {
		sb.WriteString("1\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader(sb.String()), Options{Columns: []string{"a"}})
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		missing bool
		wantErr bool
	}{
		{in: "42", want: 42},
		{in: " -3.5 ", want: -3.5},
		{in: "1,234,567", want: 1234567},
		{in: "$12.50", want: 12.5},
		{in: "17%", want: 17},
		{in: "1e3", want: 1000},
		{in: "", missing: true},
		{in: "N/A", missing: true},
		{in: "(X)", missing: true},
		{in: "null", missing: true},
		{in: "NaN", missing: true},
		{in: "twelve", wantErr: true},
	}
	for _, tt := range tests {
		v, missing, err := ParseValue(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.missing, missing, tt.in)
		if tt.missing {
			assert.True(t, math.IsNaN(v), tt.in)
		} else {
			assert.Equal(t, tt.want, v, tt.in)
		}
	}
}

func TestOpen_GzipTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracts.tsv.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("id\tvalue\na\t1\nb\t2\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cols, err := Open(context.Background(), path, Options{Columns: []string{"value"}, KeyColumn: "id"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, cols[0].Values)
	assert.Equal(t, []string{"a", "b"}, cols[0].Keys)
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(context.Background(), "data.parquet", Options{Columns: []string{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = Open(context.Background(), "data.xlsx.gz", Options{Columns: []string{"a"}})
	assert.Error(t, err)
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"IMD": {
			{"LSOA", "Score", "Rank"},
			{"E01000001", "6.2", "29199"},
			{"E01000002", "5.1", "30379"},
			{"E01000003", "", "14915"},
		},
	})

	cols, err := Open(context.Background(), path, Options{Columns: []string{"score", "rank"}, KeyColumn: "LSOA", Sheet: "IMD"})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, 1, cols[0].Missing)
	assert.Equal(t, 6.2, cols[0].Values[0])
	assert.Equal(t, []float64{29199, 30379, 14915}, cols[1].Values)
	assert.Equal(t, "E01000003", cols[1].Keys[2])

	_, err = ReadXLSX(path, Options{Columns: []string{"score"}, Sheet: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func writeTestShapefile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracts.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID", 11),
		shp.FloatField("POVRATE", 10, 2),
	}))
	rows := []struct {
		id   string
		rate float64
	}{
		{"06001400100", 8.25},
		{"06001400200", 14.5},
		{"06001400300", 31},
	}
	for i, r := range rows {
		w.Write(&shp.Point{X: -122.2 + float64(i)*0.01, Y: 37.8})
		require.NoError(t, w.WriteAttribute(i, 0, r.id))
		require.NoError(t, w.WriteAttribute(i, 1, r.rate))
	}
	w.Close()
	return path
}

func TestReadShapefile(t *testing.T) {
	path := writeTestShapefile(t)

	cols, err := Open(context.Background(), path, Options{Columns: []string{"povrate"}, KeyColumn: "GEOID"})
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, []float64{8.25, 14.5, 31}, cols[0].Values)
	assert.Equal(t, []string{"06001400100", "06001400200", "06001400300"}, cols[0].Keys)

	// The .dbf path resolves to the same shapefile.
	dbf := strings.TrimSuffix(path, ".shp") + ".dbf"
	cols, err = Open(context.Background(), dbf, Options{Columns: []string{"POVRATE"}})
	require.NoError(t, err)
	assert.Len(t, cols[0].Values, 3)
}
