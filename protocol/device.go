package protocol

// Address identifies a device on the bus. Every packet carries a source and a
// destination address.
type Address uint8

const (
	AddrGM     Address = 0x00 // body module, remote fob events
	AddrCDC    Address = 0x18 // CD changer
	AddrGT     Address = 0x3B // graphics stage / navigation screen
	AddrMFL    Address = 0x50 // steering wheel buttons
	AddrRAD    Address = 0x68 // radio
	AddrIKE    Address = 0x80 // instrument cluster
	AddrGlobal Address = 0xBF // broadcast
	AddrTEL    Address = 0xC8 // telephone
	AddrANZV   Address = 0xE7 // cluster display / LEDs
	AddrBMB    Address = 0xF0 // board monitor buttons
	AddrLocal  Address = 0xFF // local broadcast
)

var addressNames = map[Address]string{
	AddrGM:     "GM",
	AddrCDC:    "CDC",
	AddrGT:     "GT",
	AddrMFL:    "MFL",
	AddrRAD:    "RAD",
	AddrIKE:    "IKE",
	AddrGlobal: "GLO",
	AddrTEL:    "TEL",
	AddrANZV:   "ANZV",
	AddrBMB:    "BMB",
	AddrLocal:  "LOC",
}

// String returns the short device name, or the hex address for unknown devices.
func (a Address) String() string {
	if name, ok := addressNames[a]; ok {
		return name
	}
	return string([]byte{'0', 'x', hexDigits[a>>4], hexDigits[a&0x0F]})
}
