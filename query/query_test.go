package query

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/types"
)

// fakeEngine returns canned rows and records every statement.
type fakeEngine struct {
	rows   []types.DBRow
	status int32
	err    error
	sqls   []string
}

func (f *fakeEngine) ExecQuery(_ context.Context, _ string, sql string) ([]types.DBRow, int32, error) {
	f.sqls = append(f.sqls, sql)
	return f.rows, f.status, f.err
}

func (f *fakeEngine) DBNames(context.Context) ([]string, error) {
	return []string{"MicroMsg.db", "MSG0.db"}, nil
}

func (f *fakeEngine) DBTables(_ context.Context, db string) ([]types.DBTable, error) {
	return []types.DBTable{{Name: db + ".t"}}, nil
}

func field(ft types.FieldType, col, content string) types.DBField {
	return types.DBField{Type: ft, Column: col, Content: []byte(content)}
}

func TestDecodeField(t *testing.T) {
	wide, _ := new(big.Int).SetString("1234567890123456", 10)
	huge, _ := new(big.Int).SetString("8864946020601626971", 10)

	tests := []struct {
		name  string
		field types.DBField
		want  any
	}{
		{"small integer", field(types.FieldInteger, "n", "55"), int64(55)},
		{"negative integer", field(types.FieldInteger, "n", "-7"), int64(-7)},
		{"15 digits stays int64", field(types.FieldInteger, "n", "123456789012345"), int64(123456789012345)},
		{"16 digits becomes big", field(types.FieldInteger, "n", "1234567890123456"), wide},
		{"server id becomes big", field(types.FieldInteger, "n", "8864946020601626971"), huge},
		{"float", field(types.FieldFloat, "f", "1.5"), 1.5},
		{"text", field(types.FieldText, "s", "héllo"), "héllo"},
		{"unknown tag is text", field(types.FieldType(9), "s", "raw"), "raw"},
		{"null", types.DBField{Type: types.FieldNull, Column: "z"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeField(tt.field)
			if err != nil {
				t.Fatalf("DecodeField failed: %v", err)
			}
			switch want := tt.want.(type) {
			case *big.Int:
				n, ok := got.(*big.Int)
				if !ok || n.Cmp(want) != 0 {
					t.Errorf("got %T %v, want *big.Int %v", got, got, want)
				}
			default:
				if got != tt.want {
					t.Errorf("got %T %v, want %T %v", got, got, tt.want, tt.want)
				}
			}
		})
	}
}

func TestDecodeField_BlobIsCopied(t *testing.T) {
	content := []byte{0x00, 0x01, 0xff}
	got, err := DecodeField(types.DBField{Type: types.FieldBlob, Column: "b", Content: content})
	if err != nil {
		t.Fatalf("DecodeField failed: %v", err)
	}
	blob, ok := got.([]byte)
	if !ok || string(blob) != string(content) {
		t.Fatalf("got %v, want %v", got, content)
	}
	content[0] = 0x42
	if blob[0] != 0x00 {
		t.Error("decoded blob aliases the wire buffer")
	}
}

func TestDecodeField_ParseErrors(t *testing.T) {
	for _, f := range []types.DBField{
		field(types.FieldInteger, "n", "12x"),
		field(types.FieldInteger, "n", "12345678901234567x"),
		field(types.FieldFloat, "f", "one"),
	} {
		_, err := DecodeField(f)
		var qe *QueryError
		if !errors.As(err, &qe) || qe.Column != f.Column {
			t.Errorf("DecodeField(%q) = %v, want QueryError on column %s", f.Content, err, f.Column)
		}
	}
}

func TestExecutor_Execute(t *testing.T) {
	eng := &fakeEngine{rows: []types.DBRow{
		{Fields: []types.DBField{
			field(types.FieldInteger, "localId", "55"),
			field(types.FieldInteger, "MsgSvrID", "8864946020601626971"),
			{Type: types.FieldBlob, Column: "CompressContent", Content: []byte{0xab}},
			{Type: types.FieldNull, Column: "BytesExtra"},
			field(types.FieldText, "StrContent", "hello"),
		}},
	}}
	collector := metrics.NewCollector("e", "s")
	ex := New(eng, WithCollector(collector))

	rows, err := ex.Execute(t.Context(), "MSG0.db", "SELECT * FROM MSG")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]

	wantCols := []string{"localId", "MsgSvrID", "CompressContent", "BytesExtra", "StrContent"}
	for i, c := range wantCols {
		if row.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, row.Columns[i], c)
		}
	}
	if n, err := row.Int64("localId"); err != nil || n != 55 {
		t.Errorf("Int64(localId) = %d, %v", n, err)
	}
	if id, err := row.Uint64("MsgSvrID"); err != nil || id != 8864946020601626971 {
		t.Errorf("Uint64(MsgSvrID) = %d, %v", id, err)
	}
	if _, err := row.Int64("MsgSvrID"); err != nil {
		t.Errorf("Int64(MsgSvrID) should narrow a fitting big.Int: %v", err)
	}
	if b, err := row.Bytes("CompressContent"); err != nil || len(b) != 1 || b[0] != 0xab {
		t.Errorf("Bytes(CompressContent) = %v, %v", b, err)
	}
	if !row.IsNull("BytesExtra") {
		t.Error("BytesExtra should be NULL")
	}
	if row.IsNull("missing") {
		t.Error("missing column reported as NULL")
	}
	if s, err := row.String("StrContent"); err != nil || s != "hello" {
		t.Errorf("String(StrContent) = %q, %v", s, err)
	}
	if _, err := row.Float64("StrContent"); err == nil {
		t.Error("Float64 on text should fail")
	}

	if got := collector.Snapshot().Queries; got != 1 {
		t.Errorf("Queries = %d, want 1", got)
	}
}

func TestExecutor_NonSuccessStatus(t *testing.T) {
	collector := metrics.NewCollector("e", "s")
	ex := New(&fakeEngine{status: -1}, WithCollector(collector))

	_, err := ex.Execute(t.Context(), "MSG0.db", "UPDATE MSG SET x = 1")
	if !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	var qe *QueryError
	if !errors.As(err, &qe) || qe.DB != "MSG0.db" || qe.Status != -1 {
		t.Errorf("QueryError = %+v", qe)
	}
	if got := collector.Snapshot().QueryErrors; got != 1 {
		t.Errorf("QueryErrors = %d, want 1", got)
	}
}

func TestExecutor_DecodeErrorCarriesStatement(t *testing.T) {
	ex := New(&fakeEngine{rows: []types.DBRow{{Fields: []types.DBField{field(types.FieldInteger, "n", "nope")}}}})

	_, err := ex.Execute(t.Context(), "MicroMsg.db", "SELECT n")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qe.DB != "MicroMsg.db" || qe.SQL != "SELECT n" || qe.Column != "n" {
		t.Errorf("QueryError = %+v", qe)
	}
}

func TestExecutor_TransportErrorPropagates(t *testing.T) {
	sentinel := errors.New("socket gone")
	ex := New(&fakeEngine{err: sentinel})
	if _, err := ex.Execute(t.Context(), "MSG0.db", "SELECT 1"); !errors.Is(err, sentinel) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestExecutor_ExecuteArgs(t *testing.T) {
	eng := &fakeEngine{}
	ex := New(eng)

	if _, err := ex.ExecuteArgs(t.Context(), "MicroMsg.db",
		"SELECT RoomData FROM ChatRoom WHERE ChatRoomName = ?", "x'; DROP TABLE ChatRoom; --"); err != nil {
		t.Fatalf("ExecuteArgs failed: %v", err)
	}
	want := "SELECT RoomData FROM ChatRoom WHERE ChatRoomName = 'x''; DROP TABLE ChatRoom; --'"
	if eng.sqls[0] != want {
		t.Errorf("sql = %q, want %q", eng.sqls[0], want)
	}

	if _, err := ex.ExecuteArgs(t.Context(), "MicroMsg.db", "SELECT ?"); !errors.Is(err, ErrBindArgs) {
		t.Errorf("expected ErrBindArgs, got %v", err)
	}
	if len(eng.sqls) != 1 {
		t.Error("a statement with unbound placeholders reached the engine")
	}
}

func TestExecutor_Listing(t *testing.T) {
	ex := New(&fakeEngine{})
	dbs, err := ex.ListDatabases(t.Context())
	if err != nil || len(dbs) != 2 {
		t.Errorf("ListDatabases = %v, %v", dbs, err)
	}
	tables, err := ex.ListTables(t.Context(), "MSG0.db")
	if err != nil || len(tables) != 1 || tables[0].Name != "MSG0.db.t" {
		t.Errorf("ListTables = %v, %v", tables, err)
	}
}
