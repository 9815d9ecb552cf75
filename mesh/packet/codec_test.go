package packet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldrelay/mesh"
)

func validPacket() *mesh.Packet {
	return &mesh.Packet{
		ID:           "p1",
		OriginatorID: "B",
		Payload:      []byte("help"),
		Trace:        []string{"B"},
		TTL:          5,
		CreatedAt:    1000,
		Priority:     3,
		Type:         mesh.PacketSOS,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := validPacket()
	b, err := Encode(p)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestEncodeDecodeRoundTripBase64(t *testing.T) {
	p := validPacket()
	b, err := EncodeBase64(p)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)
	require.IsType(t, &MalformedError{}, err)
}

func TestValidateTraceInvariants(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*mesh.Packet)
		wantErr string
	}{
		{
			name:    "empty trace",
			mutate:  func(p *mesh.Packet) { p.Trace = nil },
			wantErr: "trace is empty",
		},
		{
			name:    "trace does not start with originator",
			mutate:  func(p *mesh.Packet) { p.Trace = []string{"X"} },
			wantErr: "trace[0]",
		},
		{
			name:    "trace has duplicate",
			mutate:  func(p *mesh.Packet) { p.Trace = []string{"B", "A", "B"}; p.OriginatorID = "B" },
			wantErr: "duplicate",
		},
		{
			name:    "ttl out of range",
			mutate:  func(p *mesh.Packet) { p.TTL = 101 },
			wantErr: "ttl",
		},
		{
			name:    "bad priority",
			mutate:  func(p *mesh.Packet) { p.Priority = 9 },
			wantErr: "priority",
		},
		{
			name:    "empty node id in trace",
			mutate:  func(p *mesh.Packet) { p.Trace = []string{"B", ""} },
			wantErr: "empty node id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPacket()
			tc.mutate(p)
			err := Validate(p)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	p := validPacket()
	p.Payload = make([]byte, mesh.MaxPayloadBytes)
	_, err := Encode(p)
	require.Error(t, err)
}

func TestChecksum32IsDeterministic(t *testing.T) {
	b := []byte("hello mesh")
	require.Equal(t, Checksum32(b), Checksum32(b))
	require.NotEqual(t, Checksum32(b), Checksum32([]byte("hello Mesh")))
}

func TestFastFingerprintIsDeterministic(t *testing.T) {
	p := validPacket()
	b, err := Encode(p)
	require.NoError(t, err)
	require.Equal(t, FastFingerprint(b), FastFingerprint(b))
}

func TestWireFieldNames(t *testing.T) {
	p := validPacket()
	b, err := Encode(p)
	require.NoError(t, err)
	s := string(b)
	for _, field := range []string{`"id"`, `"originatorId"`, `"payload"`, `"trace"`, `"ttl"`, `"timestamp"`, `"priority"`, `"packetType"`} {
		require.Contains(t, s, field)
	}
}
