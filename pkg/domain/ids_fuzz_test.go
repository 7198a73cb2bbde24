package domain

import "testing"

// FuzzParseTechnicianID checks parsing never panics and valid IDs round-trip.
func FuzzParseTechnicianID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTechnicianID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Fatal("parsed nil technician ID without error")
		}
		roundTrip, err := ParseTechnicianID(id.String())
		if err != nil {
			t.Fatalf("valid ID failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Fatal("round-trip changed ID value")
		}
	})
}
