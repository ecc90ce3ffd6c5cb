package ui

// iconBytes is the tray icon, a 16x16 PNG.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x1d, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0xa0, 0x06, 0xd0,
	0x8b, 0xb3, 0xf9, 0x4f, 0x0e, 0x1e, 0x35, 0x60, 0xd4, 0x80, 0x51, 0x03,
	0xa8, 0x6d, 0x00, 0x25, 0x00, 0x00, 0xe5, 0x4c, 0x5c, 0x6c, 0xee, 0x67,
	0x07, 0xdf, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42,
	0x60, 0x82,
}
