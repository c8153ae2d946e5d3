package protocol

// Generic bus & protocol constants (platform independent). All higher layers should depend on this file.
const (
	// Packet sizing
	// Layout:
	//   Source (1) | Length (1) | Destination (1) | Payload (0-228) | Checksum (1)
	// Length counts everything after the length byte, i.e., total packet size minus 2.

	// Sizes of individual components
	SourceFieldSize   = 1
	LengthFieldSize   = 1
	DestFieldSize     = 1
	ChecksumFieldSize = 1

	// Source + Length + Destination
	PacketHeaderSize = SourceFieldSize + LengthFieldSize + DestFieldSize

	// Shortest packet the receive classifier will complete
	MinPacketSize = 5

	// Largest packet the host queue accepts (one queue entry)
	MaxPacketSize = 232

	// Receive accumulator capacity; longer packets are never completed
	RxBufferSize = 32

	// Link parameters: 9600 baud, 8 data bits, even parity, 1 stop bit
	BaudRate = 9600

	// Controller timer period in microseconds (6.666 ms, 150 ticks per second)
	ControllerTickMicros     = 6666
	ControllerTicksPerSecond = 150

	// Host queue service period in milliseconds
	HostTickMillis = 50

	// Host queue defaults (in host ticks / attempts)
	DefaultResendTicks = 10 // 0.5 s between attempts
	DefaultRetryLimit  = 3  // give up on the attempt after this many

	// Index of the length byte within a packet
	lengthIndex = 1
)

// LED pattern bits understood by the instrument cluster LED command.
const (
	LEDOff         byte = 0x00
	LEDRed         byte = 0x01
	LEDRedBlink    byte = 0x03
	LEDOrange      byte = 0x04
	LEDOrangeBlink byte = 0x0C
	LEDGreen       byte = 0x10
	LEDGreenBlink  byte = 0x30

	LEDAllBlink = LEDRedBlink | LEDOrangeBlink | LEDGreenBlink
)

// Command bytes (first payload byte after the destination).
const (
	CmdLED        byte = 0x2B
	CmdText       byte = 0x21
	CmdFobStatus  byte = 0x72
	CmdIKESensor  byte = 0x13
	CmdButton     byte = 0x48
	CmdMenuSelect byte = 0x46
	CmdWheelRT    byte = 0x01
	CmdWheelSpeak byte = 0x3B
)

// Head unit button codes carried after CmdButton.
const (
	ButtonPhone byte = 0x08
	ButtonAM    byte = 0x21
	ButtonMode  byte = 0x23
	ButtonFM    byte = 0x31
	ButtonMenu  byte = 0x34
)
