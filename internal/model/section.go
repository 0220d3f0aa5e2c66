package model

// Subtab groups report sections on the analysis page.
type Subtab struct {
	Key      string   `json:"key"`
	Sections []string `json:"sections"`
}

// SectionTaxonomy is the fixed report layout: 9 subtabs, 46 sections.
var SectionTaxonomy = []Subtab{
	{Key: "harmony", Sections: []string{"facial_thirds", "facial_fifths", "symmetry", "golden_ratio", "facial_width_height_ratio"}},
	{Key: "eyes", Sections: []string{"canthal_tilt", "eye_spacing", "eye_shape", "upper_eyelid_exposure", "under_eye", "brow_position"}},
	{Key: "nose", Sections: []string{"nasal_bridge", "nasal_tip", "nostril_shape", "nose_width", "nasofrontal_angle"}},
	{Key: "lips_mouth", Sections: []string{"lip_fullness", "lip_ratio", "cupids_bow", "philtrum", "smile_line"}},
	{Key: "jaw_chin", Sections: []string{"jaw_chin", "gonial_angle", "jawline_definition", "chin_projection", "mandible_width"}},
	{Key: "cheeks_midface", Sections: []string{"cheekbones", "buccal_fat", "midface_ratio", "nasolabial_folds", "zygomatic_projection"}},
	{Key: "skin", Sections: []string{"skin_texture", "skin_tone", "pigmentation", "acne", "fine_lines", "pores"}},
	{Key: "hair", Sections: []string{"hairline", "hair_density", "hair_texture", "facial_hair"}},
	{Key: "profile", Sections: []string{"forehead_slope", "profile_convexity", "neck_chin_angle", "ear_position", "posture"}},
}

var sectionSubtab = func() map[string]string {
	m := make(map[string]string)
	for _, tab := range SectionTaxonomy {
		for _, s := range tab.Sections {
			m[s] = tab.Key
		}
	}
	return m
}()

func IsSectionKey(key string) bool {
	_, ok := sectionSubtab[key]
	return ok
}

// SubtabFor returns the subtab a section belongs to.
func SubtabFor(sectionKey string) (string, bool) {
	tab, ok := sectionSubtab[sectionKey]
	return tab, ok
}

func SectionCount() int {
	return len(sectionSubtab)
}
