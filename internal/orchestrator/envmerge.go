package orchestrator

// MergeEnv overlays environment variable maps left to right: keys in a
// later layer overwrite keys from earlier ones. Nil layers are skipped.
// The result is always a fresh map.
func MergeEnv(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}
