package route

// Build registers the complete route table on r: addon routes first, then
// the built-in store views, then the fallback to FallbackPath.
func Build(r Registrar, addons *Addons) {
	ExpandAddons(r, addons)
	RegisterStatic(r)
	r.Otherwise(Options{RedirectTo: FallbackPath})
}
