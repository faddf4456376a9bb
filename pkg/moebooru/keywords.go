package moebooru

import "github.com/FalconSN/booruchan/pkg/keywords"

// buildKeywords assembles the formatter's input view for one post.
func buildKeywords(platform string, p Post, typeMap TagTypeMap) keywords.Keywords {
	tags := p.TagList()
	vectors := buildKeywordVectors(tags, typeMap)
	return keywords.Keywords{
		Platform:  platform,
		ID:        p.ID,
		Tags:      tags,
		Source:    p.Source,
		MD5:       p.MD5,
		FileSize:  p.FileSize,
		FileExt:   p.DerivedFileExt(),
		Rating:    p.Rating,
		General:   vectors[CategoryGeneral],
		Character: vectors[CategoryCharacter],
		Copyright: vectors[CategoryCopyright],
		Artist:    vectors[CategoryArtist],
		Metadata:  vectors[CategoryMetadata],
		Circle:    vectors[CategoryCircle],
		Faults:    vectors[CategoryFaults],
		Style:     vectors[CategoryStyle],
	}
}
