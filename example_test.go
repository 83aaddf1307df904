package prefer_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/CreativeUnicorns/prefer"
	"github.com/CreativeUnicorns/prefer/storage"
)

var mediaKeys = prefer.MustKeyType("Media", "OutputFormat", "AutoConvert", "MaxDuration")

func ExampleNew() {
	p, err := prefer.New(storage.NewMemoryStore())
	if err != nil {
		panic(err)
	}
	p.Initialize()
	defer p.Dispose()

	media, _ := p.AddNewGroup(mediaKeys, prefer.WithGroupMeta("Media", "Conversion settings"))
	format, _ := media.AddNewString(mediaKeys.MustKey("OutputFormat"), "gif")
	autoConvert, _ := media.AddNewBool(mediaKeys.MustKey("AutoConvert"), false)

	_, _ = autoConvert.AddListener(func(v bool) {
		fmt.Println("auto convert:", v)
	})
	_, _ = media.AddListener(func(pref prefer.Preference) {
		fmt.Println("group change:", pref.Key())
	})

	ctx := context.Background()
	v, _ := format.Value(ctx)
	fmt.Println("format:", v)

	_ = autoConvert.SetValue(ctx, true)
	_ = format.SetValue(ctx, "webp")

	// Output:
	// format: gif
	// auto convert: true
	// group change: Media:AutoConvert
	// group change: Media:OutputFormat
}

func ExampleWithValidator() {
	p, _ := prefer.New(storage.NewMemoryStore())
	p.Initialize()
	defer p.Dispose()

	maxDuration, _ := p.NewInt(mediaKeys.MustKey("MaxDuration"), 30,
		prefer.WithValidator(func(v int) error {
			if v < 1 || v > 300 {
				return fmt.Errorf("duration %d out of range", v)
			}
			return nil
		}))

	err := maxDuration.SetValue(context.Background(), 600)
	fmt.Println(errors.Is(err, prefer.ErrInvalidValue))

	v, _ := maxDuration.Value(context.Background())
	fmt.Println(v)

	// Output:
	// true
	// 30
}

func ExamplePrefGroup_Observe() {
	p, _ := prefer.New(storage.NewMemoryStore())
	p.Initialize()
	defer p.Dispose()

	media, _ := p.AddNewGroup(mediaKeys)
	maxDuration, _ := media.AddNewInt(mediaKeys.MustKey("MaxDuration"), 30)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, _ := media.Observe(ctx)
	_ = maxDuration.SetValue(ctx, 60)

	pref := <-changes
	v, _ := pref.ValueString(ctx)
	fmt.Println(pref.Key(), v)

	// Output:
	// Media:MaxDuration 60
}
