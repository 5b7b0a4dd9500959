package chunker

// gearTable 是 Gear 滚动哈希使用的 256 个随机常量 (splitmix64 生成，固定种子)。
// 修改任何一项都会改变切分点，从而改变大文件的对象 ID。
var gearTable = [256]uint64{
	0x8369e60cb886ea86, 0xaa5e1528ea3b5c60, 0x439fad76accad50b, 0x14f38eda683fa541,
	0x17a65c110e0c1eec, 0x6170d77b285dbd19, 0x28e9bd38748aa1a1, 0x262699fe71b4f10e,
	0x7c19a5d112651dcb, 0xeb1794e37f08515a, 0x16c97b76b9f26a5c, 0xfc84f6785371317a,
	0x8a62085bb8496fcf, 0x3cf288ae207ad698, 0x9d585ffd0bcc3abb, 0xc14f12b5c61a902f,
	0xd6950d35bcedcced, 0xe0f56f37cbcc2a15, 0xdf312919b96afb02, 0xbf8f08f7d0303877,
	0x604450ad5a2e72a7, 0x9b40e976b24d42b6, 0x435e86501c016f83, 0x779a278511c9d244,
	0xa6ec807cfbb07dfc, 0x2cb7090de6db045d, 0x8a4640fb46015ba2, 0xbadb2d1112517088,
	0xc94f43cd4c663f90, 0x2c4442de7ea733b4, 0x932a51cbfbbe68c9, 0x27129d7ed5ba93b4,
	0xe2d9e26916ae888c, 0xbb30f994a4b940c6, 0xedf2783ccecea381, 0x78785d22715e8c9e,
	0x0ce4f50abd33ea75, 0x80dc67b143c2fea2, 0x52257d6ea334a1ff, 0x3379e17fbbc926e9,
	0x20862d367fae91b7, 0xfcfde331540b4e3c, 0x2c70d2f0dfd48209, 0x6dd9bb172ee866a4,
	0x363dd5f5a2991041, 0xa1528d47e37254e5, 0x9963a18e29d47d71, 0xe1962bd868241bbc,
	0x68de840bf253eede, 0xa7d06e4080d620a7, 0x0805093fc149f4a6, 0x5b142370f94fb84a,
	0x7e37e64ef55ab8ca, 0x4f6c6881171134f5, 0xfd6a4d74d104691d, 0xf8726f74f7677f45,
	0x8e2be4e1bdadc2f3, 0x6110e6d69f6e2828, 0x15212696401739ab, 0x16702bf12f2d8a5a,
	0xbedf75c35a38285f, 0x350f0e3822a6a4c6, 0xb4aa0671c64d8881, 0x08c46b55bb92dab4,
	0xa7f6570ce09a2c38, 0x0df0ca3b31f3b452, 0x4a884b2c3adda029, 0xe4309b75006d5369,
	0xa5ec2dea4850c377, 0xd0faf67511be85f2, 0xa63683e32c0d020a, 0x24ddd66b18f247c0,
	0x1563b5bb3788226e, 0x3d7105015eda7cf5, 0x71bfbcfb1e023a1d, 0x76295b0ad1d2fbbd,
	0x87b288c13901e774, 0x47ff7e74569125c6, 0x321c10103f5dd32f, 0x95c3a6a363568008,
	0xb76353c9479eedbb, 0xa87232276d05bc2b, 0xc2e623ebf77988b7, 0x02175cc981e11862,
	0xe2b1734fbfa4d8e0, 0x25e2c911ad303f31, 0x6ebb9e8ee310a784, 0xcec2d4d410baafc9,
	0x16fc30eace6f0919, 0x0918fef548a89d2b, 0xdfc3203a068245eb, 0x9f0f4bda0a8d05ea,
	0x265a405a3d60003c, 0x81a0931ef9d03b57, 0x4988461e30d1303c, 0x3f4fbd72c4d45ae0,
	0x08267eeaf904566a, 0x12e3e08312a6fed9, 0xa9775403a08f5dcf, 0xd8f7db072f3eb234,
	0xb319c5e996bd38b3, 0x58588bba9897fce2, 0x114c130052e8b5df, 0x021f5878ef715264,
	0xd9799e4c23fcbddc, 0x1b9f484ed870d76d, 0xc3f0cb447b66e953, 0x8519328f710fbd95,
	0x2c3194932ba9a248, 0xe46f29e2dfe51b40, 0x346ecb5833055965, 0x4ca8de1a2bd8793a,
	0xe6cf5736e4708963, 0x04b9c71a74d30a3d, 0xfa3fffe93b8cc50d, 0xdb6d366dc0a0cff5,
	0x508ac253acce0591, 0x42981217743ccbce, 0x649c1041663e0065, 0xebfd58ac674c1982,
	0x683bf7f91d77dd9f, 0xae0330eff916e12c, 0xf9620fba45375117, 0x0e71f454d935e5e3,
	0x20d18ab0fbb3f8d7, 0xe090ae170e7cf8ce, 0xba1abb38203e7d5e, 0xe219414011333373,
	0x48eab77042defa9d, 0xdb7f94b7dde36cd4, 0x555a2d9695c3b63c, 0x6b245b2daa47622d,
	0x24e5a57a0f8e68dc, 0xd2b491db97d829ab, 0xcdc3d3ed43c48988, 0xcdc4ac75f22f3a7e,
	0x3fb8b9345f05af9b, 0x242867693c2cf9a6, 0xed8cf3bbba4307e7, 0x75241ca80280c5ad,
	0xf3525058cc87b2c5, 0xf2e3f54b709f6a8f, 0xaf04ecc634247a95, 0xe9e9dee66af8e9fe,
	0xab7ed6d4121a63a7, 0x49782d0e6a8708f8, 0x9742e2909532e234, 0x7238c18a53fae09f,
	0xf804f54279af4738, 0x4d96098c1e285c5c, 0xc4bb2dfdc76fc60d, 0x7183f32d370ab517,
	0x5f02254500e3e0f4, 0x846d61f5b2b360ee, 0x6e3e1a93c9714f38, 0x9a875a6eecf2478a,
	0x8c08a3e3cad117c0, 0xf644bfcfafd28ba4, 0xe0b7a6782cdae5b7, 0x20f0e4744a913bf8,
	0x75616733b5698e22, 0x2ca354c42df9d224, 0x4e50bb61b605c5d3, 0x5c37e8501630db77,
	0x041a27989b03b2c4, 0x5626990494fdd08c, 0x17bacc7ffa90c0c6, 0x7ac9c2a4db5239e9,
	0x95cd2cdeac0da6d4, 0x5fd8f174de9fcd9e, 0xafed9763be9cb1c6, 0x7f5982a00cdff2fc,
	0x2c4aea72a8295656, 0x7ad38124ee018929, 0xca327b93a77c7a54, 0xb51a869336bf19a5,
	0x97b864d62821a2fe, 0x17c8774a7afc58c4, 0x320b4157d4677446, 0xd85dc8dadbc1071a,
	0x3905a47d86c5bf71, 0xa7ec81b25b00d5fe, 0x657413aba7a64320, 0x66f53a06ad114afe,
	0x8b076b70fb5ba5a3, 0x24de65827d1a3de9, 0x59e93c42d552d2cf, 0x1a6c062ae9c37851,
	0x369c8b0076b5e85d, 0xfe9bc8ad41c682e0, 0xc2b07e63b2fb067e, 0x2c1dead158f3a309,
	0xa7ac97e212d3ce5e, 0x5d135d59c154b912, 0x684e89ea60b165da, 0x0001553ded6ae0a6,
	0x42e1a1802c000a0b, 0x0330fb0b52a10db5, 0x10cb97311aeff929, 0x27f529a09fa74c0d,
	0x46e81de84c55774e, 0x6c64fe83699c3821, 0x65197a6b3f9946a5, 0x4f7bdd19196d4174,
	0xb4276f660755ddaa, 0x76d71477c4b30c26, 0x1e8f4720d97bb467, 0x7f36d61fb9d122fb,
	0xcfa69f7b40c16075, 0xef63e1fa9874d1c6, 0xc4b487621add9d68, 0x8eee670191f5fa98,
	0x786955a1378a1ecd, 0xdd554b3ac29b702c, 0x68011596d2b493c6, 0x308b116779cd40ed,
	0xcb8da21d382b940a, 0x6b300775a0392c01, 0x8bbf9080ea0f9be3, 0x77babd422d1dd386,
	0x4a6d13d54110e4df, 0x8ddc79da8d834058, 0xcbc2e82c80229804, 0xf3420c8183d5b839,
	0x00fa7cb44e6dcd7a, 0xe96ee65d35ee68fd, 0x996d6cc71dd5b532, 0x15d3416cc6aa6c60,
	0xd2fa8f7563a8e995, 0x71d35c9867b7de4f, 0x76b733db29b1ae3a, 0xee9fa128174e1488,
	0x0b8046300c390f4c, 0x03d0b084c9ded9c4, 0x03099c6cef826d2a, 0x6c1fbee142d0d96c,
	0x84b34a2fb7ae7bb6, 0xa26bbff49b61659e, 0x2a59593cfc4ad9f1, 0x4e277b8758f236d0,
	0x2e579c8c293a3f00, 0x4b69f347daf74522, 0x810b2aef9947f235, 0x0f5e759f0611a2e4,
	0x1d12baf846e26e9c, 0x64814bb2d7118621, 0xa18970962742198c, 0xbed49a79542e6e5c,
	0xa55615a7051fea34, 0x295b570a0257646a, 0xff4703c86edff8df, 0xb65ae7f174a86780,
	0xf94accd68a5f861e, 0x7382a30003a7f2c4, 0xdba5560234b612fd, 0x9055cb72e61c0675,
}
