package app

import (
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/mag_survey/internal/mag"
)

// Console rendering of survey output. Kept apart from the statistics
// computation so the stats package stays pure data-in, data-out.

func printSampleHeader(w io.Writer) {
	fmt.Fprintln(w, "Timestamp(ms), Mag_X(uT), Mag_Y(uT), Mag_Z(uT), Temperature(degC)")
}

func printSampleRow(w io.Writer, elapsed time.Duration, s mag.Sample) {
	fmt.Fprintf(w, "%d, %f, %f, %f, %f\n",
		elapsed.Milliseconds(), s.X, s.Y, s.Z, s.Temperature)
}

func printAverage(w io.Writer, mean mag.Vector) {
	fmt.Fprintln(w, "***** AVERAGE MAG VALUE *****")
	fmt.Fprintln(w, "Average_Mag_X(uT), Average_Mag_Y(uT), Average_Mag_Z(uT)")
	fmt.Fprintf(w, "%f, %f, %f\n", mean.X, mean.Y, mean.Z)
}

func printNoise(w io.Writer, noise mag.Vector) {
	fmt.Fprintln(w, "\nNoise level x (nTrms), Noise level y (nTrms), Noise level z (nTrms)")
	fmt.Fprintf(w, "%f, %f, %f\n", noise.X, noise.Y, noise.Z)
}
