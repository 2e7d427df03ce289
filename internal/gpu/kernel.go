// Package gpu implements OpenCL mining workers for SHA3x.
package gpu

// kernelSource is the SHA3x OpenCL kernel. Each work item grinds batchSize
// nonces, tracking the best (lowest) big-endian top word of the triple
// SHA3-256; results better than the target value are raced into the output
// buffer with 64-bit atomics. Layout mirrors the host engine: input is the
// 32-byte header as 4 little-endian ulongs, output is [best_nonce, best_top].
const kernelSource = `
#pragma OPENCL EXTENSION cl_khr_int64_base_atomics : enable
#pragma OPENCL EXTENSION cl_khr_int64_extended_atomics : enable

__constant ulong keccakf_rndc[24] = {
    0x0000000000000001UL, 0x0000000000008082UL, 0x800000000000808aUL,
    0x8000000080008000UL, 0x000000000000808bUL, 0x0000000080000001UL,
    0x8000000080008081UL, 0x8000000000008009UL, 0x000000000000008aUL,
    0x0000000000000088UL, 0x0000000080008009UL, 0x000000008000000aUL,
    0x000000008000808bUL, 0x800000000000008bUL, 0x8000000000008089UL,
    0x8000000000008003UL, 0x8000000000008002UL, 0x8000000000000080UL,
    0x000000000000800aUL, 0x800000008000000aUL, 0x8000000080008081UL,
    0x8000000000008080UL, 0x0000000080000001UL, 0x8000000080008008UL
};

__constant int keccakf_rotc[24] = {
    1, 3, 6, 10, 15, 21, 28, 36, 45, 55, 2, 14,
    27, 41, 56, 8, 25, 43, 62, 18, 39, 61, 20, 44
};

__constant int keccakf_piln[24] = {
    10, 7, 11, 17, 18, 3, 5, 16, 8, 21, 24, 4,
    15, 23, 19, 13, 12, 2, 20, 14, 22, 9, 6, 1
};

#define ROTL64(x, y) rotate((x), (ulong)(y))

static void keccakf(ulong st[25]) {
    ulong t, bc[5];

    for (int round = 0; round < 24; round++) {
        // Theta
        for (int i = 0; i < 5; i++)
            bc[i] = st[i] ^ st[i + 5] ^ st[i + 10] ^ st[i + 15] ^ st[i + 20];
        for (int i = 0; i < 5; i++) {
            t = bc[(i + 4) % 5] ^ ROTL64(bc[(i + 1) % 5], 1);
            for (int j = 0; j < 25; j += 5)
                st[j + i] ^= t;
        }

        // Rho Pi
        t = st[1];
        for (int i = 0; i < 24; i++) {
            int j = keccakf_piln[i];
            bc[0] = st[j];
            st[j] = ROTL64(t, keccakf_rotc[i]);
            t = bc[0];
        }

        // Chi
        for (int j = 0; j < 25; j += 5) {
            for (int i = 0; i < 5; i++)
                bc[i] = st[j + i];
            for (int i = 0; i < 5; i++)
                st[j + i] ^= (~bc[(i + 1) % 5]) & bc[(i + 2) % 5];
        }

        // Iota
        st[0] ^= keccakf_rndc[round];
    }
}

// sha3_256 of a 32-byte message held in four lanes
static void sha3_256_32(ulong in0, ulong in1, ulong in2, ulong in3, ulong out[4]) {
    ulong st[25];
    for (int i = 0; i < 25; i++)
        st[i] = 0;

    st[0] = in0;
    st[1] = in1;
    st[2] = in2;
    st[3] = in3;
    st[4] = 0x06UL;               // SHA3 domain padding after byte 32
    st[16] ^= 0x8000000000000000UL; // final bit of the 136-byte rate block

    keccakf(st);

    out[0] = st[0];
    out[1] = st[1];
    out[2] = st[2];
    out[3] = st[3];
}

static ulong bswap64(ulong x) {
    return as_ulong(as_uchar8(x).s76543210);
}

// sha3x: triple SHA3-256 over LE(nonce) || header(32) || 0x01
__kernel void sha3x(__global const ulong *header,
                    const ulong nonce_start,
                    const ulong target,
                    const uint batch_size,
                    __global volatile ulong *output) {
    const ulong gid = get_global_id(0);
    ulong nonce = nonce_start + gid * (ulong)batch_size;

    const ulong h0 = header[0];
    const ulong h1 = header[1];
    const ulong h2 = header[2];
    const ulong h3 = header[3];

    ulong best_top = (ulong)-1;
    ulong best_nonce = 0;

    for (uint i = 0; i < batch_size; i++, nonce++) {
        ulong st[25];
        for (int j = 0; j < 25; j++)
            st[j] = 0;

        // Message: 8 bytes nonce, 32 bytes header, 0x01 marker, 41 bytes total
        st[0] = nonce;
        st[1] = h0;
        st[2] = h1;
        st[3] = h2;
        st[4] = h3;
        st[5] = 0x0601UL;             // marker byte then SHA3 padding
        st[16] ^= 0x8000000000000000UL;

        keccakf(st);

        ulong d[4];
        sha3_256_32(st[0], st[1], st[2], st[3], d);
        sha3_256_32(d[0], d[1], d[2], d[3], d);

        ulong top = bswap64(d[0]);
        if (top < best_top) {
            best_top = top;
            best_nonce = nonce;
        }
    }

    if (best_top <= target) {
        ulong prev = atom_min(&output[1], best_top);
        if (best_top < prev) {
            output[0] = best_nonce;
        }
    }
}
`
