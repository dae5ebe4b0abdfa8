package panelinfo

// VBTFields holds the values a Video BIOS Table can contribute. No VBT
// block is parsed yet, so DecodeVBT always returns every field nil.
type VBTFields struct {
	SeamlessDRRS            *bool
	XPSTSupported           *bool
	XPSTLevel               *int
	OPSTELP                 *bool
	PanelReplay             *string
	BacklightControl        *string
	BrightnessPrecisionBits *string
	BacklightLightSource    *string
	TouchSupport            *bool
}

// DecodeVBT is the VBT extension point. It does not read the file.
// TODO: walk the BDB block list (LFP data, backlight and PSR blocks) to fill VBTFields.
func DecodeVBT(_ string) (VBTFields, error) {
	return VBTFields{}, nil
}

// ApplyTo merges any decoded VBT fields into info without touching values
// the other formats set.
func (f VBTFields) ApplyTo(info *Info) {
	if f.SeamlessDRRS != nil {
		info.SeamlessDRRS = flag(*f.SeamlessDRRS)
	}
	if f.XPSTSupported != nil {
		info.XPSTSupported = flag(*f.XPSTSupported)
	}
	if f.XPSTLevel != nil {
		level := *f.XPSTLevel
		info.XPSTLevel = &level
	}
	if f.OPSTELP != nil {
		info.OPSTELP = flag(*f.OPSTELP)
	}
	if f.PanelReplay != nil {
		info.EDP15PanelReplay = str(*f.PanelReplay)
	}
	if f.BacklightControl != nil {
		info.BacklightControl = str(*f.BacklightControl)
	}
	if f.BrightnessPrecisionBits != nil {
		info.BrightnessPrecisionBits = str(*f.BrightnessPrecisionBits)
	}
	if f.BacklightLightSource != nil {
		info.BacklightLightSource = str(*f.BacklightLightSource)
	}
	if f.TouchSupport != nil {
		info.TouchSupport = flag(*f.TouchSupport)
	}
}
