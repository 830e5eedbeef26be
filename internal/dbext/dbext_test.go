package dbext

import (
	"testing"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/module"
)

func newTestVM() *engine.VM {
	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	return engine.New(graph, module.NewLoader())
}

func newDbExternalData(vm *engine.VM) *heap.ExternalData {
	obj := vm.Graph.NewNode(heap.KindPlain).Obj
	return heap.NewExternalData(obj)
}

func TestDriverNameMapsKnownAliases(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"postgres", "postgres", false},
		{"postgresql", "postgres", false},
		{"mysql", "mysql", false},
		{"sqlserver", "sqlserver", false},
		{"mssql", "sqlserver", false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		got, err := driverName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("driverName(%q) should error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("driverName(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("driverName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQueryArgsBareString(t *testing.T) {
	vm := newTestVM()
	arg := heap.FromObject(vm.Graph.NewString("select 1").Obj)
	text, binds, err := queryArgs(arg)
	if err != nil {
		t.Fatalf("queryArgs() error: %v", err)
	}
	if text != "select 1" || len(binds) != 0 {
		t.Errorf("queryArgs() = %q, %v, want \"select 1\", []", text, binds)
	}
}

func TestQueryArgsTupleWithBinds(t *testing.T) {
	vm := newTestVM()
	arg := heap.FromObject(vm.Graph.NewTuple([]heap.Element{
		heap.FromObject(vm.Graph.NewString("select * from t where id = ?").Obj),
		heap.Int(7),
	}).Obj)
	text, binds, err := queryArgs(arg)
	if err != nil {
		t.Fatalf("queryArgs() error: %v", err)
	}
	if text != "select * from t where id = ?" {
		t.Errorf("queryArgs() text = %q", text)
	}
	if len(binds) != 1 || binds[0].(int64) != 7 {
		t.Errorf("queryArgs() binds = %v, want [7]", binds)
	}
}

func TestQueryArgsRejectsNonStringNonTuple(t *testing.T) {
	if _, _, err := queryArgs(heap.Int(1)); err == nil {
		t.Error("queryArgs() on a bare Int should error")
	}
}

func TestElementToGoRoundTripsScalars(t *testing.T) {
	vm := newTestVM()
	if got := elementToGo(heap.None); got != nil {
		t.Errorf("elementToGo(None) = %v, want nil", got)
	}
	if got := elementToGo(heap.Int(5)); got.(int64) != 5 {
		t.Errorf("elementToGo(Int(5)) = %v, want int64(5)", got)
	}
	str := heap.FromObject(vm.Graph.NewString("hi").Obj)
	if got := elementToGo(str); got.(string) != "hi" {
		t.Errorf("elementToGo(String) = %v, want \"hi\"", got)
	}
}

func TestGoToElementRoundTripsScalars(t *testing.T) {
	vm := newTestVM()
	if got := goToElement(vm, nil); !got.IsNone() {
		t.Errorf("goToElement(nil) = %v, want None", got)
	}
	if got := goToElement(vm, int64(9)); got.Val.I != 9 {
		t.Errorf("goToElement(int64(9)) = %v, want Int(9)", got)
	}
	if got := goToElement(vm, "hey"); !got.IsObject() || got.Obj.StrVal != "hey" {
		t.Errorf("goToElement(\"hey\") = %v", got)
	}
	if got := goToElement(vm, true); got.Val.I != 1 {
		t.Errorf("goToElement(true) = %v, want Int(1)", got)
	}
}

func TestStateOfWithoutConstructorErrors(t *testing.T) {
	vm := newTestVM()
	data := newDbExternalData(vm)
	if _, err := stateOf(data); err == nil {
		t.Error("stateOf() on an unconstructed Db should error")
	}
}

func TestDbConstructorRejectsUnsupportedType(t *testing.T) {
	vm := newTestVM()
	data := newDbExternalData(vm)
	arg := heap.FromObject(vm.Graph.NewTuple([]heap.Element{
		heap.FromObject(vm.Graph.NewString("oracle").Obj),
		heap.FromObject(vm.Graph.NewString("dsn").Obj),
	}).Obj)
	if _, err := dbConstructor(vm, nil, data, arg); err == nil {
		t.Error("Db(\"oracle\", ...) should error for an unsupported driver")
	}
}

func TestDbSqliteExecuteAndQueryRoundTrip(t *testing.T) {
	vm := newTestVM()
	data := newDbExternalData(vm)
	arg := heap.FromObject(vm.Graph.NewTuple([]heap.Element{
		heap.FromObject(vm.Graph.NewString("sqlite").Obj),
		heap.FromObject(vm.Graph.NewString(":memory:").Obj),
	}).Obj)
	if _, err := dbConstructor(vm, nil, data, arg); err != nil {
		t.Fatalf("Db constructor error: %v", err)
	}
	defer dbClose(vm, nil, data, heap.None)

	ddl := heap.FromObject(vm.Graph.NewString("create table widgets(id integer primary key, name text)").Obj)
	if _, err := dbExecute(vm, nil, data, ddl); err != nil {
		t.Fatalf("create table error: %v", err)
	}

	insert := heap.FromObject(vm.Graph.NewTuple([]heap.Element{
		heap.FromObject(vm.Graph.NewString("insert into widgets(id, name) values (?, ?)").Obj),
		heap.Int(1),
		heap.FromObject(vm.Graph.NewString("cog").Obj),
	}).Obj)
	affected, err := dbExecute(vm, nil, data, insert)
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if affected.Val.I != 1 {
		t.Errorf("rows affected = %v, want 1", affected)
	}

	query := heap.FromObject(vm.Graph.NewString("select id, name from widgets order by id").Obj)
	rows, err := dbQuery(vm, nil, data, query)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	n, _ := heap.ArrayLength(rows.Obj.Node)
	if n != 1 {
		t.Fatalf("row count = %d, want 1", n)
	}
	row, _ := heap.ArrayGet(rows.Obj.Node, 0)
	id, _ := heap.TupleGet(row.Obj.Node, 0)
	name, _ := heap.TupleGet(row.Obj.Node, 1)
	if id.Val.I != 1 {
		t.Errorf("row[0] id = %v, want 1", id)
	}
	if name.Obj.StrVal != "cog" {
		t.Errorf("row[0] name = %v, want \"cog\"", name)
	}

	one, err := dbQueryOne(vm, nil, data, query)
	if err != nil {
		t.Fatalf("query_one error: %v", err)
	}
	oneName, _ := heap.TupleGet(one.Obj.Node, 1)
	if oneName.Obj.StrVal != "cog" {
		t.Errorf("query_one name = %v, want \"cog\"", oneName)
	}
}

func TestDbQueryOneReturnsNoneOnEmptyResult(t *testing.T) {
	vm := newTestVM()
	data := newDbExternalData(vm)
	arg := heap.FromObject(vm.Graph.NewTuple([]heap.Element{
		heap.FromObject(vm.Graph.NewString("sqlite").Obj),
		heap.FromObject(vm.Graph.NewString(":memory:").Obj),
	}).Obj)
	if _, err := dbConstructor(vm, nil, data, arg); err != nil {
		t.Fatalf("Db constructor error: %v", err)
	}
	defer dbClose(vm, nil, data, heap.None)

	ddl := heap.FromObject(vm.Graph.NewString("create table t(id integer)").Obj)
	if _, err := dbExecute(vm, nil, data, ddl); err != nil {
		t.Fatalf("create table error: %v", err)
	}

	query := heap.FromObject(vm.Graph.NewString("select id from t").Obj)
	one, err := dbQueryOne(vm, nil, data, query)
	if err != nil {
		t.Fatalf("query_one error: %v", err)
	}
	if !one.IsNone() {
		t.Errorf("query_one on an empty table = %v, want None", one)
	}
}
