package editor

import (
	"context"
	"testing"
)

func TestMetricsMeasurerGrowsWithContent(t *testing.T) {
	m := NewMetricsMeasurer()
	short := mustParse(t, `<html><body><div class="cv-columns"><p>krótko</p></div></body></html>`)
	long := mustParse(t, `<html><body><div class="cv-columns">
		<p>pierwszy akapit</p><p>drugi akapit</p><p>trzeci akapit</p>
		<ul><li>raz</li><li>dwa</li><li>trzy</li></ul>
	</div></body></html>`)

	sizeShort, err := m.Measure(context.Background(), short, testVP)
	if err != nil {
		t.Fatalf("measure short: %v", err)
	}
	sizeLong, err := m.Measure(context.Background(), long, testVP)
	if err != nil {
		t.Fatalf("measure long: %v", err)
	}
	if sizeLong.Height <= sizeShort.Height {
		t.Errorf("height %f not greater than %f for longer content", sizeLong.Height, sizeShort.Height)
	}
}

func TestMetricsMeasurerSkipsHiddenElements(t *testing.T) {
	m := NewMetricsMeasurer()
	visible := mustParse(t, `<html><body><div class="cv-columns"><p>treść</p><p>druga linia</p></div></body></html>`)
	hidden := mustParse(t, `<html><body><div class="cv-columns"><p>treść</p><p style="display: none">druga linia</p></div></body></html>`)

	sizeVisible, err := m.Measure(context.Background(), visible, testVP)
	if err != nil {
		t.Fatalf("measure visible: %v", err)
	}
	sizeHidden, err := m.Measure(context.Background(), hidden, testVP)
	if err != nil {
		t.Fatalf("measure hidden: %v", err)
	}
	if sizeHidden.Height >= sizeVisible.Height {
		t.Errorf("hidden affordance still contributes height: %f >= %f", sizeHidden.Height, sizeVisible.Height)
	}
}

func TestMetricsMeasurerMissingContainer(t *testing.T) {
	m := NewMetricsMeasurer()
	doc := mustParse(t, `<html><body><p>bez kolumn</p></body></html>`)
	if _, err := m.Measure(context.Background(), doc, testVP); err != ErrNoContainer {
		t.Fatalf("err = %v, want ErrNoContainer", err)
	}
}

func TestMetricsMeasurerCountsImages(t *testing.T) {
	m := NewMetricsMeasurer()
	withImg := mustParse(t, `<html><body><div class="cv-columns"><img src="photo.jpg" height="120"/></div></body></html>`)

	size, err := m.Measure(context.Background(), withImg, testVP)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if size.Height < 120 {
		t.Errorf("height = %f, want at least the declared image height", size.Height)
	}
}
