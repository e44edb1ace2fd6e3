package types

import (
	"math"
	"testing"
)

func TestVec3Ops(t *testing.T) {
	v := XYZ(1, 2, 3)

	if got := v.Add(XYZ(3, 2, 1)); got != (Vec3{4, 4, 4}) {
		t.Fatalf("Add returned %v", got)
	}
	if got := v.Sub(XYZ(1, 1, 1)); got != (Vec3{0, 1, 2}) {
		t.Fatalf("Sub returned %v", got)
	}
	if got := v.Dot(XYZ(4, 5, 6)); got != 32 {
		t.Fatalf("Dot returned %v", got)
	}
	if got := XYZ(1, 0, 0).Cross(XYZ(0, 1, 0)); got != (Vec3{0, 0, 1}) {
		t.Fatalf("Cross returned %v", got)
	}

	n := XYZ(0, 3, 4).Normalize()
	if math.Abs(n.Len()-1) > 1e-15 {
		t.Fatalf("Normalize broke length: %.17g", n.Len())
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected zero vector to normalize to itself; got %v", got)
	}
}

func TestMat3MulVec(t *testing.T) {
	m := Rows(XYZ(1, 2, 3), XYZ(4, 5, 6), XYZ(7, 8, 10))
	v := m.MulVec(XYZ(1, 1, 1))
	if v != (Vec3{6, 15, 25}) {
		t.Fatalf("MulVec returned %v", v)
	}

	if det := m.Det(); math.Abs(det-(-3)) > 1e-12 {
		t.Fatalf("Det returned %v; want -3", det)
	}
}

func TestRotationAxisAngleIsOrthonormal(t *testing.T) {
	r := RotationAxisAngle(XYZ(1, 2, 3), math.Pi/7)

	// R^T R ~ I
	p := r.Transpose().Mul(r)
	ident := Ident3()
	for i := range p {
		if math.Abs(p[i]-ident[i]) > 1e-14 {
			t.Fatalf("R^T R != I at %d: %.3g", i, p[i]-ident[i])
		}
	}

	if math.Abs(r.Det()-1) > 1e-14 {
		t.Fatalf("rotation determinant %v; want 1", r.Det())
	}
}

func TestRotationAxisAngleQuarterTurn(t *testing.T) {
	// 90 degrees around z maps x onto y.
	r := RotationAxisAngle(XYZ(0, 0, 1), math.Pi/2)
	v := r.MulVec(XYZ(1, 0, 0))
	if math.Abs(v[0]) > 1e-15 || math.Abs(v[1]-1) > 1e-15 || math.Abs(v[2]) > 1e-15 {
		t.Fatalf("quarter turn returned %v", v)
	}
}

func TestRotationDegenerateAxis(t *testing.T) {
	if got := RotationAxisAngle(Vec3{}, 1.0); got != Ident3() {
		t.Fatalf("degenerate axis should produce identity; got %v", got)
	}
}
