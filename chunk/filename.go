package chunk

// TempFileName names the scratch file used while rewriting name.
func TempFileName(name string) string {
	return name + ".tmp"
}
