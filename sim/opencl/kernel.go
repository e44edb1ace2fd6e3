package opencl

// Layout of the scalar parameter buffer uploaded at Init time. Every value
// is stored in the kernel's real type so that single precision builds never
// see a double.
const (
	paramDistance    = 0
	paramPixelSize   = 1
	paramBeamCenterF = 2
	paramBeamCenterS = 3
	paramFastAxis    = 4  // 3 values
	paramSlowAxis    = 7  // 3 values
	paramNormal      = 10 // 3 values
	paramBeamDir     = 13 // 3 values
	paramPolar       = 16
	paramBVec        = 17 // 3 values
	paramEVec        = 20 // 3 values
	paramMinAirpath  = 23
	paramDefaultRe   = 24
	paramDefaultIm   = 25
	paramCount       = 26
)

// The integration kernel. It mirrors the reference integrator exactly: the
// same pixel to lab mapping, the same Kahn polarization evaluation and the
// same fixed accumulation order over sub-pixels, mosaic domains and
// spectrum lines, so both backends agree within the parity tolerance.
const kernelSource = `
#ifdef SINGLE_PRECISION
typedef float real_t;
typedef float3 real3_t;
#else
#pragma OPENCL EXTENSION cl_khr_fp64 : enable
typedef double real_t;
typedef double3 real3_t;
#endif

static inline real3_t load3(__global const real_t* p, int base) {
	return (real3_t)(p[base], p[base+1], p[base+2]);
}

__kernel void integrate_block(
	__global const real_t* params,
	__global const real_t* domains,
	__global const real_t* spectrum,
	__global const real_t* fgrid,
	const int fminH, const int fminK, const int fminL,
	const int fnH, const int fnK, const int fnL,
	const int clampToBounds,
	const int oversample,
	const int domainCount,
	const int lineCount,
	const int width,
	const int blockY,
	const int blockH,
	__global real_t* pixels)
{
	int gid = get_global_id(0);
	if (gid >= width * blockH) {
		return;
	}
	int fast = gid % width;
	int slow = blockY + gid / width;

	real_t distance   = params[0];
	real_t pixelSize  = params[1];
	real_t beamCenF   = params[2];
	real_t beamCenS   = params[3];
	real3_t fastAxis  = load3(params, 4);
	real3_t slowAxis  = load3(params, 7);
	real3_t normal    = load3(params, 10);
	real3_t beamDir   = load3(params, 13);
	real_t polar_frac = params[16];
	real3_t bVec      = load3(params, 17);
	real3_t eVec      = load3(params, 20);
	real_t minAirpath = params[23];
	real_t defRe      = params[24];
	real_t defIm      = params[25];

	real_t step = (real_t)1 / (real_t)oversample;
	real_t acc = 0;

	for (int sf = 0; sf < oversample; sf++) {
		real_t subF = ((real_t)sf + (real_t)0.5) * step - (real_t)0.5;
		for (int ss = 0; ss < oversample; ss++) {
			real_t subS = ((real_t)ss + (real_t)0.5) * step - (real_t)0.5;

			real_t df = ((real_t)fast + (real_t)0.5 + subF - beamCenF) * pixelSize;
			real_t ds = ((real_t)slow + (real_t)0.5 + subS - beamCenS) * pixelSize;
			real3_t pos = normal * distance + fastAxis * df + slowAxis * ds;

			real_t airpath = length(pos);
			if (airpath < minAirpath) {
				airpath = minAirpath;
			}
			real3_t diffracted = pos / airpath;
			real_t omega = pixelSize * pixelSize * distance / (airpath * airpath * airpath);

			real_t cos2theta = clamp(dot(diffracted, beamDir), (real_t)-1, (real_t)1);
			real_t cos2thetaSqr = cos2theta * cos2theta;
			real_t sin2thetaSqr = (real_t)1 - cos2thetaSqr;
			real_t cos2psi = 0;
			if (polar_frac != (real_t)0) {
				real_t psi = -atan2(dot(diffracted, bVec), dot(diffracted, eVec));
				cos2psi = cos((real_t)2 * psi);
			}
			real_t polar = (real_t)0.5 * ((real_t)1 + cos2thetaSqr - polar_frac * cos2psi * sin2thetaSqr);

			for (int d = 0; d < domainCount; d++) {
				__global const real_t* ainv = domains + d * 9;
				for (int l = 0; l < lineCount; l++) {
					real_t wavelength = spectrum[l * 2];
					real_t weight = spectrum[l * 2 + 1];

					real3_t q = (diffracted - beamDir) / wavelength;
					int h = (int)round(ainv[0] * q.x + ainv[1] * q.y + ainv[2] * q.z);
					int k = (int)round(ainv[3] * q.x + ainv[4] * q.y + ainv[5] * q.z);
					int li = (int)round(ainv[6] * q.x + ainv[7] * q.y + ainv[8] * q.z);

					int hh = h - fminH;
					int kk = k - fminK;
					int ll = li - fminL;
					if (clampToBounds) {
						hh = clamp(hh, 0, fnH - 1);
						kk = clamp(kk, 0, fnK - 1);
						ll = clamp(ll, 0, fnL - 1);
					}

					real_t re, im;
					if (hh < 0 || hh >= fnH || kk < 0 || kk >= fnK || ll < 0 || ll >= fnL) {
						re = defRe;
						im = defIm;
					} else {
						int cell = (hh * fnK + kk) * fnL + ll;
						re = fgrid[cell * 2];
						im = fgrid[cell * 2 + 1];
					}

					real_t intensity = re * re + im * im;
					acc += intensity * omega * polar * weight;
				}
			}
		}
	}

	pixels[slow * width + fast] = acc / (real_t)(oversample * oversample * domainCount);
}
`
