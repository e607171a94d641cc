// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFlags_Zombify(t *testing.T) {
	Convey("Given an entity with several behavior flags set", t, func() {
		f := Selectable | Combatable | Movable | Harvester | Collision

		Convey("When it is zombified", func() {
			z := f.Zombify()

			Convey("Every behavior flag is cleared", func() {
				So(z.Has(Selectable), ShouldBeFalse)
				So(z.Has(Combatable), ShouldBeFalse)
				So(z.Has(Movable), ShouldBeFalse)
				So(z.Has(Harvester), ShouldBeFalse)
			})

			Convey("The Zombie flag is set", func() {
				So(z.Has(Zombie), ShouldBeTrue)
			})

			Convey("A flag outside the cleared set survives", func() {
				So(z.Has(Collision), ShouldBeTrue)
			})
		})
	})
}

func TestFlags_ValidRejectsMovableAndBuilding(t *testing.T) {
	Convey("Given a flag set with both Movable and Building", t, func() {
		f := Movable | Building

		Convey("It is not valid", func() {
			So(f.valid(), ShouldBeFalse)
		})
	})

	Convey("Given a flag set with only one of Movable or Building", t, func() {
		Convey("Movable alone is valid", func() {
			So(Movable.valid(), ShouldBeTrue)
		})
		Convey("Building alone is valid", func() {
			So(Building.valid(), ShouldBeTrue)
		})
	})
}

func TestFlags_SetAndClearRoundTrip(t *testing.T) {
	Convey("Given a zero flag set", t, func() {
		var f Flags

		Convey("Setting a bit then clearing it returns the zero value", func() {
			f = f.Set(Harvester)
			So(f.Has(Harvester), ShouldBeTrue)
			f = f.Clear(Harvester)
			So(f, ShouldEqual, Flags(0))
		})
	})
}
