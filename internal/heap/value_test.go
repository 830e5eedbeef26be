package heap

import "testing"

func TestArith(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		a, b    Value
		want    Value
		wantErr bool
	}{
		{"int add", "+", IntValue(2), IntValue(3), IntValue(5), false},
		{"int sub", "-", IntValue(10), IntValue(4), IntValue(6), false},
		{"int mul", "*", IntValue(6), IntValue(7), IntValue(42), false},
		{"int div", "/", IntValue(9), IntValue(2), IntValue(4), false},
		{"int mod", "%", IntValue(9), IntValue(2), IntValue(1), false},
		{"int div by zero", "/", IntValue(1), IntValue(0), Value{}, true},
		{"int mod by zero", "%", IntValue(1), IntValue(0), Value{}, true},
		{"int plus float promotes", "+", IntValue(2), FloatValue(0.5), FloatValue(2.5), false},
		{"char participates via int value", "+", CharValue('A'), IntValue(1), IntValue(66), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arith(tt.op, tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Arith(%q, %v, %v) = %v, want error", tt.op, tt.a, tt.b, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Arith(%q, %v, %v) unexpected error: %v", tt.op, tt.a, tt.b, err)
			}
			if got.Kind != tt.want.Kind {
				t.Fatalf("Arith(%q, %v, %v).Kind = %v, want %v", tt.op, tt.a, tt.b, got.Kind, tt.want.Kind)
			}
			if got != tt.want {
				t.Errorf("Arith(%q, %v, %v) = %v, want %v", tt.op, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFloatDivisionByZeroIsInfNotError(t *testing.T) {
	got, err := Arith("/", FloatValue(1), FloatValue(0))
	if err != nil {
		t.Fatalf("float division by zero must not error, got %v", err)
	}
	if got.Kind != KFloat || !(got.F > 1e300) {
		t.Fatalf("expected +Inf, got %v", got)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"equal ints", IntValue(3), IntValue(3), 0},
		{"less", IntValue(1), IntValue(2), -1},
		{"greater", FloatValue(3.5), IntValue(2), 1},
		{"mixed equal via promotion", IntValue(2), FloatValue(2.0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"int zero is false", IntValue(0), false},
		{"int nonzero is true", IntValue(1), true},
		{"float zero is true", FloatValue(0), true},
		{"char NUL is true", CharValue(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("%v.Truthy() = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestNegate(t *testing.T) {
	if got := Negate(IntValue(5)); got.Kind != KInt || got.I != -5 {
		t.Errorf("Negate(5) = %v, want Int(-5)", got)
	}
	if got := Negate(CharValue(5)); got.Kind != KInt || got.I != -5 {
		t.Errorf("Negate(Char(5)) = %v, want widened Int(-5)", got)
	}
}
