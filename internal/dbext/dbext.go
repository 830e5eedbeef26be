// Package dbext implements the "Db" external class SPEC_FULL.md §C.7
// adds as a domain-stack consumer of the driver dependencies the
// corpus carries (mysql, postgres, sqlserver, sqlite): a thin
// external-function wrapper around database/sql, grounded on the
// teacher's internal/database/db_manager.go connection-pool logic
// adapted to the JL object model's one-instance-per-resource shape
// (spec.md §4.8: an external class wraps one real host resource per
// instance, the same as the "concurrency" package's Mutex/Semaphore or
// "io"'s File -- not a manager keeping a name-keyed registry of many).
package dbext

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// Register installs the "database" native module.
func Register(vm *engine.VM) {
	vm.RegisterNativeModule("database", build)
}

func build(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)
	vm.NewExternalClass(modNode, "Db", map[string]engine.ExternalFunction{
		"constructor":   dbConstructor,
		"deconstructor": dbClose,
		"query":         dbQuery,
		"query_one":     dbQueryOne,
		"execute":       dbExecute,
		"close":         dbClose,
	})
	return modNode
}

type dbState struct {
	db *sql.DB
}

// driverName maps db_manager.go's Connect switch onto the four drivers
// the corpus pulls in, adding "sqlserver"/"mssql" for go-mssqldb (the
// teacher's db_manager.go only covered sqlite/postgres/mysql; its
// import list in database.go already includes the mssql driver, this
// just exposes it through the same switch).
func driverName(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", vmerrors.New(vmerrors.ArgumentError, "unsupported database type %q", dbType)
	}
}

// dbConstructor opens the connection eagerly (db_manager.go's Connect:
// open + Ping + pool sizing), the single argument being a (type, dsn)
// Tuple.
func dbConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsObject() || arg.Obj.Kind != heap.KindTuple || len(arg.Obj.TupleElems) != 2 {
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "Db(type, dsn) requires a 2-tuple")
	}
	elems := arg.Obj.TupleElems
	if !elems[0].IsObject() || elems[0].Obj.Kind != heap.KindString || !elems[1].IsObject() || elems[1].Obj.Kind != heap.KindString {
		return heap.None, vmerrors.New(vmerrors.TypeError, "Db(type, dsn) requires two Strings")
	}
	driver, err := driverName(elems[0].Obj.StrVal)
	if err != nil {
		return heap.None, err
	}
	db, err := sql.Open(driver, elems[1].Obj.StrVal)
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "Db connect failed: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return heap.None, vmerrors.New(vmerrors.IOError, "Db ping failed: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	data.State["s"] = &dbState{db: db}
	return heap.None, nil
}

func stateOf(data *heap.ExternalData) (*dbState, error) {
	if data == nil {
		return nil, vmerrors.New(vmerrors.InternalError, "Db method called without a constructed instance")
	}
	v, ok := data.State["s"]
	if !ok {
		return nil, vmerrors.New(vmerrors.IOError, "Db was never successfully connected")
	}
	return v.(*dbState), nil
}

// queryArgs splits arg into (sqlText, bindArgs): either a bare String
// with no binds, or a Tuple whose first element is the String and the
// rest are bind values passed straight to database/sql.
func queryArgs(arg heap.Element) (string, []interface{}, error) {
	if arg.IsObject() && arg.Obj.Kind == heap.KindString {
		return arg.Obj.StrVal, nil, nil
	}
	if arg.IsObject() && arg.Obj.Kind == heap.KindTuple && len(arg.Obj.TupleElems) >= 1 {
		elems := arg.Obj.TupleElems
		if !elems[0].IsObject() || elems[0].Obj.Kind != heap.KindString {
			return "", nil, vmerrors.New(vmerrors.TypeError, "query text must be a String")
		}
		binds := make([]interface{}, 0, len(elems)-1)
		for _, e := range elems[1:] {
			binds = append(binds, elementToGo(e))
		}
		return elems[0].Obj.StrVal, binds, nil
	}
	return "", nil, vmerrors.New(vmerrors.ArgumentError, "query requires a String or (String, binds...) tuple")
}

func elementToGo(e heap.Element) interface{} {
	switch {
	case e.IsNone():
		return nil
	case e.IsValue():
		switch e.Val.Kind {
		case heap.KInt:
			return e.Val.I
		case heap.KFloat:
			return e.Val.F
		default:
			return int64(e.Val.C)
		}
	case e.IsObject() && e.Obj.Kind == heap.KindString:
		return e.Obj.StrVal
	default:
		return e.String()
	}
}

func goToElement(vm *engine.VM, v interface{}) heap.Element {
	switch x := v.(type) {
	case nil:
		return heap.None
	case []byte:
		return heap.FromObject(vm.Graph.NewString(string(x)).Obj)
	case string:
		return heap.FromObject(vm.Graph.NewString(x).Obj)
	case int64:
		return heap.Int(x)
	case float64:
		return heap.FromValue(heap.FloatValue(x))
	case bool:
		if x {
			return heap.Int(1)
		}
		return heap.Int(0)
	case time.Time:
		return heap.FromObject(vm.Graph.NewString(x.Format(time.RFC3339)).Obj)
	default:
		return heap.FromObject(vm.Graph.NewString(fmt.Sprintf("%v", x)).Obj)
	}
}

// dbQuery runs a row-returning query (db_manager.go's Query), mapped
// onto JL's Array/Tuple types: the result is an Array of per-row
// Tuples, values in column order -- JL has no map/dict type (spec.md
// §3's variant list is Array | Tuple | String | Module | ExternalFnCell
// | external instance), so a row is a positional Tuple, not a record.
func dbQuery(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	text, binds, err := queryArgs(arg)
	if err != nil {
		return heap.None, err
	}
	rows, err := st.db.Query(text, binds...)
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "query failed: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "query failed: %v", err)
	}

	result := vm.Graph.NewArray()
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return heap.None, vmerrors.New(vmerrors.IOError, "query scan failed: %v", err)
		}
		rowElems := make([]heap.Element, len(cols))
		for i, v := range vals {
			rowElems[i] = goToElement(vm, v)
		}
		tup := vm.Graph.NewTuple(rowElems)
		if err := vm.Graph.ArrayPush(result, heap.FromObject(tup.Obj)); err != nil {
			return heap.None, err
		}
	}
	if err := rows.Err(); err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "query failed: %v", err)
	}
	return heap.FromObject(result.Obj), nil
}

// dbQueryOne is dbQuery's single-row convenience (db_manager.go's
// QueryOne), returning None rather than erroring on zero rows.
func dbQueryOne(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	result, err := dbQuery(vm, th, data, arg)
	if err != nil {
		return heap.None, err
	}
	n, _ := heap.ArrayLength(result.Obj.Node)
	if n == 0 {
		return heap.None, nil
	}
	return heap.ArrayGet(result.Obj.Node, 0)
}

func dbExecute(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	text, binds, err := queryArgs(arg)
	if err != nil {
		return heap.None, err
	}
	res, err := st.db.Exec(text, binds...)
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "execute failed: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "execute failed: %v", err)
	}
	return heap.Int(affected), nil
}

func dbClose(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, nil
	}
	st.db.Close()
	return heap.None, nil
}
